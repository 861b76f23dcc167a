package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/retail-planner/internal/api"
	"github.com/ignite/retail-planner/internal/archive"
	"github.com/ignite/retail-planner/internal/config"
	"github.com/ignite/retail-planner/internal/metrics"
	"github.com/ignite/retail-planner/internal/orders"
	"github.com/ignite/retail-planner/internal/pkg/distlock"
	"github.com/ignite/retail-planner/internal/pkg/httpretry"
	"github.com/ignite/retail-planner/internal/pkg/logger"
	"github.com/ignite/retail-planner/internal/recommendation"
	"github.com/ignite/retail-planner/internal/repository/postgres"
	"github.com/ignite/retail-planner/internal/service/plan"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.ShouldRedact())

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL: plans, audit trail, and the default metrics source.
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Database ping failed (host %s): %v", extractHost(cfg.Database.URL), err)
	}
	logger.Info("database connected", "host", extractHost(cfg.Database.URL))

	redisClient := connectRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	feed, feedPing, closeFeed, err := buildFeed(cfg.Metrics, db, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize metrics feed: %v", err)
	}
	defer closeFeed()

	engineCfg, err := cfg.Recommendation.ToEngineConfig()
	if err != nil {
		log.Fatalf("Invalid recommendation config: %v", err)
	}
	var engineOpts []recommendation.EngineOption
	if redisClient != nil {
		engineOpts = append(engineOpts, recommendation.WithBatchCache(
			recommendation.NewRedisBatchCache(redisClient), cfg.Recommendation.BatchCacheTTL()))
	}
	engine, err := recommendation.NewEngine(feed, engineCfg, cfg.Recommendation.ToPolicy(), engineOpts...)
	if err != nil {
		log.Fatalf("Failed to initialize recommendation engine: %v", err)
	}
	logger.Info("recommendation engine ready", "config", engineCfg.Fingerprint(), "workers", engineCfg.Workers)

	planOpts := []plan.Option{
		plan.WithLockWait(cfg.Planning.LockWait()),
		plan.WithDefaultUnitCost(cfg.Planning.DefaultUnitCost),
	}
	if cfg.Orders.BaseURL != "" {
		orderClient, err := orders.NewClient(orders.Config{
			BaseURL:    cfg.Orders.BaseURL,
			APIKey:     cfg.Orders.APIKey,
			Timeout:    cfg.Orders.Timeout(),
			MaxRetries: cfg.Orders.MaxRetries,
		}, httpretry.WithBackoff(500*time.Millisecond, 10*time.Second))
		if err != nil {
			log.Fatalf("Failed to initialize order client: %v", err)
		}
		planOpts = append(planOpts, plan.WithOrderCreator(orderClient))
		logger.Info("order system configured", "base_url", cfg.Orders.BaseURL)
	} else {
		logger.Warn("orders.base_url not set: plan execution is disabled")
	}

	var archivePing api.PingFunc
	if cfg.Archive.Enabled {
		archiver, err := archive.New(ctx, archive.Config{
			Bucket:          cfg.Archive.Bucket,
			Region:          cfg.Archive.Region,
			Prefix:          cfg.Archive.Prefix,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			Compress:        cfg.Archive.Compress,
		})
		if err != nil {
			log.Fatalf("Failed to initialize manifest archive: %v", err)
		}
		planOpts = append(planOpts, plan.WithArchiver(archiver))
		archivePing = archiver.Ping
	}

	locks := distlock.NewFactory(redisClient, db, cfg.Planning.LockTTL())
	plans := plan.NewService(postgres.NewPlanRepo(db), locks, planOpts...)

	health := api.NewHealthChecker().
		Add("database", true, time.Second, db.PingContext).
		Add("metrics", true, 2*time.Second, feedPing).
		Add("archive", false, 0, archivePing)
	if redisClient != nil {
		health.Add("redis", false, 500*time.Millisecond, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		health.Add("redis", false, 0, nil)
	}

	handlers := api.NewHandlers(engine, plans, api.Options{
		DefaultDaysBack: cfg.Metrics.WindowDays,
		ActorHeader:     cfg.Planning.ActorHeader,
		MetricsCache:    engine,
	})
	router := api.SetupRoutes(handlers, health, api.RouteOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ActorHeader:    cfg.Planning.ActorHeader,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable.
// Plan locks then fall back to PostgreSQL advisory locks and caching is off.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled() {
		logger.Info("redis not configured: using advisory locks, caching disabled")
		return nil
	}
	var client *redis.Client
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			logger.Warn("invalid redis url, redis disabled", "error", err)
			return nil
		}
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, redis disabled", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

// buildFeed opens the configured metrics source and wraps it in the Redis
// snapshot cache when available.
func buildFeed(cfg config.MetricsConfig, db *sql.DB, redisClient *redis.Client) (metrics.Feed, api.PingFunc, func(), error) {
	var source *metrics.SQLFeed
	closeFn := func() {}

	switch cfg.Source {
	case "snowflake":
		sf, err := metrics.NewSnowflakeFeed(metrics.SnowflakeConfig{
			Account:   cfg.Snowflake.Account,
			User:      cfg.Snowflake.User,
			Password:  cfg.Snowflake.Password,
			Database:  cfg.Snowflake.Database,
			Schema:    cfg.Snowflake.Schema,
			Warehouse: cfg.Snowflake.Warehouse,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		source = sf
		closeFn = func() { sf.Close() }
	case "postgres":
		source = metrics.NewSQLFeed(db, metrics.DialectPostgres)
	default:
		return nil, nil, nil, fmt.Errorf("unknown metrics source %q", cfg.Source)
	}
	logger.Info("metrics feed configured", "source", cfg.Source, "window_days", cfg.WindowDays)

	if redisClient == nil {
		return source, source.Ping, closeFn, nil
	}
	return metrics.NewCachedFeed(source, redisClient, cfg.CacheTTL()), source.Ping, closeFn, nil
}
