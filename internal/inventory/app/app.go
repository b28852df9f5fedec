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

	"github.com/cartwright-labs/purchaseflow/internal/inventory/config"
	"github.com/cartwright-labs/purchaseflow/internal/inventory/event"
	inventorypg "github.com/cartwright-labs/purchaseflow/internal/inventory/repository/postgres"
	"github.com/cartwright-labs/purchaseflow/internal/inventory/service"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
	"github.com/cartwright-labs/purchaseflow/pkg/health"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// App wires together all dependencies and runs the inventory service: the
// postgres stock store and the stock-reduction consumer.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	stockReduction *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer

	Service    *service.InventoryService
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

	// Postgres pool for the stock store.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	database.RegisterPoolMetrics(pool, "inventory")
	logger.Info("connected to PostgreSQL", slog.String("host", cfg.PostgresHost))

	// Build the dependency graph.
	repo := inventorypg.NewStockRepository(pool)
	inventoryService := service.NewInventoryService(repo, logger)

	// Stock-reduction consumer reacting to confirmed checkouts, deduplicated
	// through redis so replays do not reduce stock twice.
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	stockHandler := pkgkafka.IdempotentHandler(
		pkgkafka.NewRedisIdempotencyStore(rdb, cfg.StockReductionGroup, 24*time.Hour),
		event.NewConsumer(inventoryService, logger).HandleCheckoutConfirmed,
		logger,
	)
	stockReduction := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.StockReductionGroup,
		Topic:   event.TopicCheckoutConfirmed,
	}, stockHandler, logger).WithDLQ(dlq)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
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
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		pool:           pool,
		stockReduction: stockReduction,
		dlq:            dlq,
		Service:        inventoryService,
		httpServer:     httpServer,
	}, nil
}

// Run starts the stock-reduction consumer and the ops HTTP server, blocking
// until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting ops HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.stockReduction.Start(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("stock-reduction consumer: %w", err)
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
	if err := a.stockReduction.Close(); err != nil {
		a.logger.Error("stock-reduction consumer close error", slog.String("error", err.Error()))
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
	}
	a.pool.Close()
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
