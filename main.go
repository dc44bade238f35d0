// Command linkbio serves the landing page API and, optionally, the built
// static site.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/internal/config"
	"github.com/jonesrussell/linkbio/internal/kvstore"
	"github.com/jonesrussell/linkbio/internal/page"
	"github.com/jonesrussell/linkbio/internal/sink"
	"github.com/jonesrussell/linkbio/internal/tracking"
	infraconfig "github.com/jonesrussell/linkbio/infrastructure/config"
	infragin "github.com/jonesrussell/linkbio/infrastructure/gin"
	"github.com/jonesrussell/linkbio/infrastructure/logger"
	"github.com/jonesrussell/linkbio/infrastructure/metrics"
	infraredis "github.com/jonesrussell/linkbio/infrastructure/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	sweepInterval       = time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.Storage.Backend == config.StorageRedis {
		redisClient, err = infraredis.NewClient(ctx, cfg.Storage.Redis)
		if err != nil {
			log.Error("Failed to connect to Redis", logger.Error(err))
			return 1
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("Redis connected", logger.String("address", cfg.Storage.Redis.Address))
	}

	return runServer(ctx, cfg, log, redisClient)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(infraconfig.GetConfigPath("config.yml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.ValidateLinkPage(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// newBackend picks the visitor storage. Without Redis, the in-memory stores
// are swept until ctx ends.
func newBackend(ctx context.Context, cfg *config.Config, client *redis.Client) page.Backend {
	if client != nil {
		return page.NewRedisBackend(client, cfg.Storage.ProfileMaxAge, cfg.Storage.SessionTTL)
	}

	profiles := kvstore.NewMemory(cfg.Storage.ProfileMaxAge)
	sessions := kvstore.NewMemory(cfg.Storage.SessionTTL)
	go profiles.RunSweeper(ctx, sweepInterval)
	go sessions.RunSweeper(ctx, sweepInterval)
	return page.NewKVBackend(profiles, sessions)
}

func runServer(ctx context.Context, cfg *config.Config, log logger.Logger, client *redis.Client) int {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := page.NewHandler(page.Config{
		Profile: cfg.Profile,
		Backend: newBackend(ctx, cfg, client),
		Remote: tracking.Config{
			Driver:     cfg.Remote.Driver,
			Endpoint:   cfg.Remote.URL,
			Credential: cfg.Remote.AnonKey,
		},
		Cookies: page.CookieConfig{
			ProfileMaxAge: cfg.Storage.ProfileMaxAge,
			Secure:        cfg.Storage.SecureCookies,
		},
		TrackingOptions: []tracking.Option{
			tracking.WithMetrics(tracking.NewMetrics(reg)),
			tracking.WithSinkLookup(sink.Shared(sink.Lookup)),
		},
	}, log)

	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, defaultWriteTimeout, defaultIdleTimeout).
		WithMiddleware(metrics.NewHTTP(reg).Middleware()).
		WithRoutes(func(router *gin.Engine) {
			page.RegisterRoutes(router, handler, cfg.Service.StaticDir)
		})

	if cfg.Service.MetricsEnabled {
		builder.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	if client != nil {
		builder.WithHealthCheck("redis", infragin.PingChecker(func() error {
			return client.Ping(ctx).Err()
		}))
	}

	log.Info("Link page starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("storage", cfg.Storage.Backend),
		logger.String("analytics_driver", cfg.Remote.Driver),
	)

	if err := builder.Build().RunWithGracefulShutdown(ctx); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Link page exited cleanly")
	return 0
}
