/**
 * @description
 * This is the main entry point for the payment reconciliation service.
 * It initializes and wires together all the components of the application:
 * configuration, database connection, optional Redis and RabbitMQ clients, the
 * reconciliation engine, and the HTTP router. Finally, it starts the HTTP
 * server and shuts it down gracefully on SIGINT/SIGTERM.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/gokkuu100/konserve-cp-sub003/internal/api"
	"github.com/gokkuu100/konserve-cp-sub003/internal/app"
	"github.com/gokkuu100/konserve-cp-sub003/internal/config"
	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
	"github.com/gokkuu100/konserve-cp-sub003/internal/store"
	"github.com/gokkuu100/konserve-cp-sub003/internal/webhook"
	"github.com/gokkuu100/konserve-cp-sub003/pkg/rabbitmq"
)

func main() {
	// Load .env for local development; in deployment the environment is injected.
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to the PostgreSQL database with connection pool configuration
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = 50
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	// Use simple protocol to stay compatible with PgBouncer transaction pooling.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Optional Redis-backed delivery dedup.
	var deduper *app.RedisEventDeduper
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		deduper = app.NewRedisEventDeduper(redisClient, cfg.DedupKeyPrefix, time.Duration(cfg.DedupTTLMinutes)*time.Minute)
		logger.Info("redis delivery dedup enabled")
	}

	// Optional RabbitMQ producer for payment outcome events.
	var publisher app.OutcomePublisher
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("unable to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = app.NewAMQPOutcomePublisher(producer, cfg.PaymentEventExchange)
		logger.Info("payment outcome publishing enabled", "exchange", cfg.PaymentEventExchange)
	}

	// Initialize application layers
	repository := store.NewPostgresRepository(dbpool)
	reconciler := app.NewReconciler(repository, publisher, deduper)
	verifiers := map[domain.Provider]*webhook.Verifier{
		domain.ProviderPaystack: webhook.NewVerifier(domain.ProviderPaystack, cfg.PaystackSecret),
		domain.ProviderIntaSend: webhook.NewVerifier(domain.ProviderIntaSend, cfg.IntaSendSecret),
	}
	if cfg.PaystackSecret == "" {
		logger.Warn("PAYSTACK_WEBHOOK_SECRET not set; paystack signature verification disabled")
	}
	if cfg.IntaSendSecret == "" {
		logger.Warn("INTASEND_WEBHOOK_SECRET not set; intasend signature verification disabled")
	}

	handler := api.NewHandler(reconciler, repository, verifiers, cfg.MobileDeepLinkScheme)
	router := api.NewRouter(handler, cfg.SupabaseJWTSecret)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
