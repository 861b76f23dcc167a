package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/retail-planner/internal/domain"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadBucketOutput{}, nil
}

func testManifest() domain.ExecutionManifest {
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	return domain.ExecutionManifest{
		Plan:       domain.CampaignPlan{ID: "p-1", Name: "Spring", Status: domain.PlanExecuted},
		Groups:     []domain.ExecutionGroup{{PlanID: "p-1", GroupKey: "W1", OrderID: "ord-1", Status: domain.GroupSucceeded}},
		ExecutedBy: "alice",
		ExecutedAt: at,
	}
}

func TestArchiveManifest(t *testing.T) {
	fake := &fakeS3{}
	a := NewWithClient(fake, "plans-archive", "retail", false)

	loc, err := a.ArchiveManifest(context.Background(), testManifest())
	require.NoError(t, err)
	assert.Equal(t, "s3://plans-archive/retail/plans/p-1/manifest-20260402T093000Z.json", loc)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "plans-archive", aws.ToString(in.Bucket))
	assert.Equal(t, "p-1", in.Metadata["plan-id"])
	assert.Equal(t, "1", in.Metadata["orders"])

	var got domain.ExecutionManifest
	require.NoError(t, json.Unmarshal(fake.bodies[0], &got))
	assert.Equal(t, "ord-1", got.Groups[0].OrderID)
}

func TestArchiveManifest_Compressed(t *testing.T) {
	fake := &fakeS3{}
	a := NewWithClient(fake, "b", "", true)

	loc, err := a.ArchiveManifest(context.Background(), testManifest())
	require.NoError(t, err)
	assert.Contains(t, loc, ".json.gz")
	assert.Equal(t, "gzip", aws.ToString(fake.inputs[0].ContentEncoding))

	zr, err := gzip.NewReader(bytes.NewReader(fake.bodies[0]))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"executed_by": "alice"`)
}

func TestArchiveManifest_UploadError(t *testing.T) {
	a := NewWithClient(&fakeS3{err: errors.New("access denied")}, "b", "", false)
	_, err := a.ArchiveManifest(context.Background(), testManifest())
	assert.ErrorContains(t, err, "access denied")
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	assert.NoError(t, NewWithClient(&fakeS3{}, "b", "", false).Ping(context.Background()))
	assert.Error(t, NewWithClient(&fakeS3{err: errors.New("no such bucket")}, "b", "", false).Ping(context.Background()))
}
