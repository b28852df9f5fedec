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

	"github.com/cartwright-labs/purchaseflow/internal/checkout/config"
	"github.com/cartwright-labs/purchaseflow/internal/checkout/event"
	"github.com/cartwright-labs/purchaseflow/internal/checkout/payment"
	paymentmock "github.com/cartwright-labs/purchaseflow/internal/checkout/payment/mock"
	checkoutpg "github.com/cartwright-labs/purchaseflow/internal/checkout/repository/postgres"
	"github.com/cartwright-labs/purchaseflow/internal/checkout/service"
	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
	"github.com/cartwright-labs/purchaseflow/pkg/health"
	"github.com/cartwright-labs/purchaseflow/pkg/httpclient"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// App wires together all dependencies and runs the checkout service: the
// postgres session store, the Kafka producer, the cart-sync consumer, and
// the periodic expiry sweep.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	rdb      *redis.Client
	pool     *pgxpool.Pool
	producer *pkgkafka.Producer
	cartSync *pkgkafka.Consumer
	dlq      *pkgkafka.DLQProducer

	Service    *service.CheckoutService
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Redis client for consumer deduplication.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// Postgres pool for the session store.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	database.RegisterPoolMetrics(pool, "checkout")
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
	repo := checkoutpg.NewCheckoutRepository(pool)
	providers := payment.NewRegistry(paymentmock.NewProvider())
	eventProducer := event.NewProducer(producer, logger)
	checkoutService := service.NewCheckoutService(repo, resolver, providers, eventProducer, cfg.SessionTTL(), logger)

	// Cart-sync consumer keeping open sessions in step with cart edits,
	// deduplicated through redis so replays do not resync identical state.
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	cartSyncHandler := pkgkafka.IdempotentHandler(
		pkgkafka.NewRedisIdempotencyStore(rdb, cfg.CartSyncGroup, 24*time.Hour),
		event.NewConsumer(checkoutService, logger).HandleCartUpdated,
		logger,
	)
	cartSync := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.CartSyncGroup,
		Topic:   event.TopicCartUpdated,
	}, cartSyncHandler, logger).WithDLQ(dlq)

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
		cartSync:   cartSync,
		dlq:        dlq,
		Service:    checkoutService,
		httpServer: httpServer,
	}, nil
}

// Run starts the cart-sync consumer, the expiry sweep, and the ops HTTP
// server, blocking until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting ops HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.cartSync.Start(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("cart-sync consumer: %w", err)
		}
	}()

	go a.runExpirySweep(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runExpirySweep periodically flips stale in-progress sessions to expired.
func (a *App) runExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.ExpirySweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := a.Service.ExpireStale(ctx, a.cfg.ExpirySweepLimit)
			if err != nil {
				a.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
				continue
			}
			if expired > 0 {
				a.logger.Info("expired stale checkout sessions", slog.Int("count", expired))
			}
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	if err := a.cartSync.Close(); err != nil {
		a.logger.Error("cart-sync consumer close error", slog.String("error", err.Error()))
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
