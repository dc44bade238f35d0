// Command collector accepts analytics inserts, stores them in PostgreSQL and
// serves the dashboard API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/linkbio/internal/collector"
	"github.com/jonesrussell/linkbio/internal/config"
	"github.com/jonesrussell/linkbio/internal/dashboard"
	"github.com/jonesrussell/linkbio/internal/middleware"
	"github.com/jonesrussell/linkbio/internal/storage"
	infraconfig "github.com/jonesrussell/linkbio/infrastructure/config"
	infragin "github.com/jonesrussell/linkbio/infrastructure/gin"
	"github.com/jonesrussell/linkbio/infrastructure/jwt"
	"github.com/jonesrussell/linkbio/infrastructure/logger"
	"github.com/jonesrussell/linkbio/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq"
)

const (
	dbPingTimeout       = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
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

	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runServer(cfg, log, db)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(infraconfig.GetConfigPath("config.yml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.ValidateCollector(); validationErr != nil {
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
	return log.With(logger.String("service", cfg.Collector.Name)), nil
}

func connectDatabase(cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)
	return db, nil
}

func runServer(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	buf := storage.NewBuffer(cfg.Collector.BufferSize)
	ingestMetrics := collector.NewMetrics(reg, func() float64 { return float64(buf.Len()) })

	store := storage.NewStore(db, buf, log, cfg.Collector.FlushInterval, cfg.Collector.FlushThreshold)
	store.OnFlush(ingestMetrics.ObserveFlush)
	store.Start()
	defer store.Stop()

	insertHandler := collector.NewHandler(buf, log, ingestMetrics)

	repo := dashboard.NewRepository(sqlx.NewDb(db, "postgres"))
	tokens := jwt.NewManager(cfg.Dashboard.JWTSecret, cfg.Dashboard.JWTExpiry)
	authHandler := dashboard.NewAuthHandler(cfg.Dashboard.AllowedEmail, cfg.Dashboard.Password, tokens, log)
	loc, err := cfg.Dashboard.Location()
	if err != nil {
		log.Error("Invalid dashboard timezone", logger.Error(err))
		return 1
	}
	statsHandler := dashboard.NewHandler(
		dashboard.NewService(repo, dashboard.WithLocation(loc)),
		cfg.Dashboard.DefaultDays,
		log,
	)

	// done stops the rate limiter's cleanup goroutine on shutdown
	done := make(chan struct{})
	defer close(done)
	limiter := middleware.RateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, done)

	server := infragin.NewServerBuilder(cfg.Collector.Name, cfg.Collector.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, defaultWriteTimeout, defaultIdleTimeout).
		WithMiddleware(metrics.NewHTTP(reg).Middleware()).
		WithHealthCheck("database", infragin.PingChecker(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
			defer cancel()
			return repo.Ping(ctx)
		})).
		WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).
		WithRoutes(func(router *gin.Engine) {
			collector.RegisterRoutes(router, insertHandler, cfg.Remote.AnonKey, limiter)
			dashboard.RegisterRoutes(router, authHandler, statsHandler, tokens)
		}).
		Build()

	log.Info("Collector starting",
		logger.Int("port", cfg.Collector.Port),
		logger.Int("buffer_size", cfg.Collector.BufferSize),
	)

	if err := server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Collector exited cleanly")
	return 0
}
