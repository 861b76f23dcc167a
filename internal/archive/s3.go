// Package archive stores execution manifests of executed plans in S3.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/pkg/logger"
)

// ObjectAPI is the slice of the S3 client the archiver needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config selects the bucket and credentials. Empty static keys fall back to
// the default AWS credential chain.
type Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Compress        bool
}

// S3Archiver writes one JSON manifest per executed plan.
type S3Archiver struct {
	client   ObjectAPI
	bucket   string
	prefix   string
	compress bool
}

// New builds an archiver from AWS config.
func New(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info("execution archive configured", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region)
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, cfg.Compress), nil
}

// NewWithClient builds an archiver over an existing client.
func NewWithClient(client ObjectAPI, bucket, prefix string, compress bool) *S3Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, compress: compress}
}

// ArchiveManifest uploads m and returns its s3:// location.
func (a *S3Archiver) ArchiveManifest(ctx context.Context, m domain.ExecutionManifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	key := a.Key(m)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"plan-id":     m.Plan.ID,
			"executed-by": m.ExecutedBy,
			"orders":      fmt.Sprint(len(m.Groups)),
		},
	}
	if a.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return "", fmt.Errorf("compress manifest: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("compress manifest: %w", err)
		}
		data = buf.Bytes()
		in.ContentEncoding = aws.String("gzip")
	}
	in.Body = bytes.NewReader(data)

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("upload manifest %s: %w", key, err)
	}
	loc := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	logger.Info("execution manifest archived", "plan_id", m.Plan.ID, "location", loc, "bytes", len(data))
	return loc, nil
}

// Key is the object key for a manifest.
func (a *S3Archiver) Key(m domain.ExecutionManifest) string {
	key := fmt.Sprintf("%splans/%s/manifest-%s.json", a.prefix, m.Plan.ID, m.ExecutedAt.UTC().Format("20060102T150405Z"))
	if a.compress {
		key += ".gz"
	}
	return key
}

// Ping checks the bucket is reachable.
func (a *S3Archiver) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return err
}
