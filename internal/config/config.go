package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/retail-planner/internal/recommendation"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Planning       PlanningConfig       `yaml:"planning"`
	Orders         OrdersConfig         `yaml:"orders"`
	Archive        ArchiveConfig        `yaml:"archive"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int      `yaml:"port"`
	Host            string   `yaml:"host"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the PostgreSQL connection that stores plans.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig is optional. When set it backs plan locks and caches.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether any Redis endpoint is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" || c.Addr != "" }

// MetricsConfig selects the metrics feed.
type MetricsConfig struct {
	Source          string          `yaml:"source"` // "postgres" or "snowflake"
	WindowDays      int             `yaml:"window_days"`
	CacheTTLMinutes int             `yaml:"cache_ttl_minutes"`
	Snowflake       SnowflakeConfig `yaml:"snowflake"`
}

// CacheTTL is how long a metrics snapshot is reused.
func (c MetricsConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// SnowflakeConfig holds the warehouse holding store and campaign metrics
type SnowflakeConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
}

// WeightsConfig are the component weights. All four must be set together.
type WeightsConfig struct {
	StorePerformance    float64 `yaml:"store_performance"`
	CreativePerformance float64 `yaml:"creative_performance"`
	GeographicFit       float64 `yaml:"geographic_fit"`
	TimingAlignment     float64 `yaml:"timing_alignment"`
}

func (w WeightsConfig) isZero() bool {
	return w == WeightsConfig{}
}

// RecommendationConfig overrides scoring defaults. Zero values keep the default.
type RecommendationConfig struct {
	Weights                 WeightsConfig `yaml:"weights"`
	MinConfidenceThreshold  float64       `yaml:"min_confidence_threshold"`
	HighConfidenceScore     float64       `yaml:"high_confidence_score"`
	LowConfidenceScore      float64       `yaml:"low_confidence_score"`
	ReasoningThreshold      float64       `yaml:"reasoning_threshold"`
	RiskFloor               float64       `yaml:"risk_floor"`
	BenchmarkConversionRate float64       `yaml:"benchmark_conversion_rate"`
	QuantityMultiplier      float64       `yaml:"quantity_multiplier"`
	BaseQuantity            int           `yaml:"base_quantity"`
	MinQuantity             int           `yaml:"min_quantity"`
	MaxQuantity             int           `yaml:"max_quantity"`
	MinStoreCampaigns       int           `yaml:"min_store_campaigns"`
	MinCampaignSample       int           `yaml:"min_campaign_sample"`
	Workers                 int           `yaml:"workers"`
	AutoApproveScore        float64       `yaml:"auto_approve_score"`
	ReviewScore             float64       `yaml:"review_score"`
	BatchCacheMinutes       int           `yaml:"batch_cache_minutes"`
}

// ToEngineConfig overlays the configured values on the scoring defaults and
// validates the result.
func (c RecommendationConfig) ToEngineConfig() (recommendation.Config, error) {
	cfg := recommendation.DefaultConfig()
	if !c.Weights.isZero() {
		cfg.Weights = recommendation.Weights{
			StorePerformance:    c.Weights.StorePerformance,
			CreativePerformance: c.Weights.CreativePerformance,
			GeographicFit:       c.Weights.GeographicFit,
			TimingAlignment:     c.Weights.TimingAlignment,
		}
	}
	setFloat(&cfg.MinConfidenceThreshold, c.MinConfidenceThreshold)
	setFloat(&cfg.HighConfidenceScore, c.HighConfidenceScore)
	setFloat(&cfg.LowConfidenceScore, c.LowConfidenceScore)
	setFloat(&cfg.ReasoningThreshold, c.ReasoningThreshold)
	setFloat(&cfg.RiskFloor, c.RiskFloor)
	setFloat(&cfg.BenchmarkConversionRate, c.BenchmarkConversionRate)
	setFloat(&cfg.QuantityMultiplier, c.QuantityMultiplier)
	setInt(&cfg.BaseQuantity, c.BaseQuantity)
	setInt(&cfg.MinQuantity, c.MinQuantity)
	setInt(&cfg.MaxQuantity, c.MaxQuantity)
	setInt(&cfg.MinStoreCampaigns, c.MinStoreCampaigns)
	setInt(&cfg.MinCampaignSample, c.MinCampaignSample)
	setInt(&cfg.Workers, c.Workers)

	if err := cfg.Validate(); err != nil {
		return recommendation.Config{}, err
	}
	return cfg, nil
}

// ToPolicy returns the review classification thresholds.
func (c RecommendationConfig) ToPolicy() recommendation.Policy {
	p := recommendation.DefaultPolicy()
	setFloat(&p.AutoApproveScore, c.AutoApproveScore)
	setFloat(&p.ReviewScore, c.ReviewScore)
	return p
}

// BatchCacheTTL is how long a scored batch is reused.
func (c RecommendationConfig) BatchCacheTTL() time.Duration {
	return time.Duration(c.BatchCacheMinutes) * time.Minute
}

// PlanningConfig holds plan lifecycle settings.
type PlanningConfig struct {
	LockTTLSeconds  int     `yaml:"lock_ttl_seconds"`
	LockWaitSeconds int     `yaml:"lock_wait_seconds"`
	DefaultUnitCost float64 `yaml:"default_unit_cost"`
	ActorHeader     string  `yaml:"actor_header"`
}

// LockTTL bounds how long a crashed holder keeps a plan locked. Live holders
// renew it while they work.
func (c PlanningConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LockWait bounds how long a mutation waits for the plan lock.
func (c PlanningConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// OrdersConfig holds the order system endpoint
type OrdersConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the per-request timeout
func (c OrdersConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ArchiveConfig holds the S3 location for execution manifests
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Compress        bool   `yaml:"compress"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// ShouldRedact defaults to true.
func (c LoggingConfig) ShouldRedact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ShutdownSeconds == 0 {
		cfg.Server.ShutdownSeconds = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Metrics.Source == "" {
		cfg.Metrics.Source = "postgres"
	}
	if cfg.Metrics.WindowDays == 0 {
		cfg.Metrics.WindowDays = 90
	}
	if cfg.Metrics.CacheTTLMinutes == 0 {
		cfg.Metrics.CacheTTLMinutes = 30
	}
	if cfg.Metrics.Snowflake.Database == "" {
		cfg.Metrics.Snowflake.Database = "RETAIL_ANALYTICS"
	}
	if cfg.Metrics.Snowflake.Schema == "" {
		cfg.Metrics.Snowflake.Schema = "DIRECT_MAIL"
	}
	if cfg.Recommendation.BatchCacheMinutes == 0 {
		cfg.Recommendation.BatchCacheMinutes = 15
	}
	if cfg.Planning.LockTTLSeconds == 0 {
		cfg.Planning.LockTTLSeconds = 30
	}
	if cfg.Planning.LockWaitSeconds == 0 {
		cfg.Planning.LockWaitSeconds = 5
	}
	if cfg.Planning.DefaultUnitCost == 0 {
		cfg.Planning.DefaultUnitCost = 0.55
	}
	if cfg.Planning.ActorHeader == "" {
		cfg.Planning.ActorHeader = "X-Actor"
	}
	if cfg.Orders.TimeoutSeconds == 0 {
		cfg.Orders.TimeoutSeconds = 30
	}
	if cfg.Orders.MaxRetries == 0 {
		cfg.Orders.MaxRetries = 3
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "execution-manifests/"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads .env, then the YAML file, then applies environment
// overrides. Secrets should only ever come from the environment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Metrics.Source, "METRICS_SOURCE")
	setString(&cfg.Metrics.Snowflake.Account, "SNOWFLAKE_ACCOUNT")
	setString(&cfg.Metrics.Snowflake.User, "SNOWFLAKE_USER")
	setString(&cfg.Metrics.Snowflake.Password, "SNOWFLAKE_PASSWORD")
	setString(&cfg.Metrics.Snowflake.Warehouse, "SNOWFLAKE_WAREHOUSE")
	setString(&cfg.Orders.BaseURL, "ORDERS_BASE_URL")
	setString(&cfg.Orders.APIKey, "ORDERS_API_KEY")
	setString(&cfg.Archive.Bucket, "ARCHIVE_S3_BUCKET")
	setString(&cfg.Archive.Region, "ARCHIVE_S3_REGION")
	setString(&cfg.Archive.AccessKeyID, "ARCHIVE_AWS_ACCESS_KEY_ID")
	setString(&cfg.Archive.SecretAccessKey, "ARCHIVE_AWS_SECRET_ACCESS_KEY")
	setString(&cfg.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true"
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
