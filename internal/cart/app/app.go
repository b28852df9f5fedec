package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cartwright-labs/purchaseflow/internal/cart/config"
	"github.com/cartwright-labs/purchaseflow/internal/cart/event"
	cartpg "github.com/cartwright-labs/purchaseflow/internal/cart/repository/postgres"
	redisrepo "github.com/cartwright-labs/purchaseflow/internal/cart/repository/redis"
	"github.com/cartwright-labs/purchaseflow/internal/cart/service"
	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
	"github.com/cartwright-labs/purchaseflow/pkg/health"
	"github.com/cartwright-labs/purchaseflow/pkg/httpclient"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// App wires together all dependencies and runs the cart service: the redis
// cart store, the postgres query projection, the Kafka producer, and the
// projector consumer that keeps the projection current.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	rdb       *redis.Client
	pool      *pgxpool.Pool
	producer  *pkgkafka.Producer
	projector *pkgkafka.Consumer
	dlq       *pkgkafka.DLQProducer

	Service    *service.CartService
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Redis client for the active-cart store.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// Postgres pool for the cart projection.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	database.RegisterPoolMetrics(pool, "cart")
	logger.Info("connected to PostgreSQL", slog.String("host", cfg.PostgresHost))

	// Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Catalog resolver behind a circuit breaker.
	resolver := pricing.NewCatalogResolver(
		httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("catalog"),
			logger,
		),
		cfg.CatalogBaseURL,
		cfg.Currency,
		logger,
	)

	// Build the dependency graph.
	repo := redisrepo.NewCartRepository(rdb, cfg.CartTTL())
	queryStore := cartpg.NewCartQueryStore(pool)
	eventProducer := event.NewProducer(producer, logger)
	cartService := service.NewCartService(repo, queryStore, resolver, eventProducer, logger)

	// Projector consumer keeping the query store current, deduplicated
	// through redis so replays do not rewrite identical snapshots.
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	projectorHandler := pkgkafka.IdempotentHandler(
		pkgkafka.NewRedisIdempotencyStore(rdb, cfg.ProjectorGroup, 24*time.Hour),
		event.NewProjector(queryStore, resolver, logger).HandleCartUpdated,
		logger,
	)
	projector := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.ProjectorGroup,
		Topic:   event.TopicCartUpdated,
	}, projectorHandler, logger).WithDLQ(dlq)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	mux := http.NewServeMux()
	mux.Handle("/healthz", healthHandler.LivenessHandler())
	mux.Handle("/readyz", healthHandler.ReadinessHandler())
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		rdb:        rdb,
		pool:       pool,
		producer:   producer,
		projector:  projector,
		dlq:        dlq,
		Service:    cartService,
		httpServer: httpServer,
	}, nil
}

// Run starts the projector consumer and the ops HTTP server, blocking until
// the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting ops HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.projector.Start(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("cart projector: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	if err := a.projector.Close(); err != nil {
		a.logger.Error("projector close error", slog.String("error", err.Error()))
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}
	a.pool.Close()
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
