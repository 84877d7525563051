package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/erdum/Necessi-sub000/internal/adapters/api"
	"github.com/erdum/Necessi-sub000/internal/adapters/database"
	"github.com/erdum/Necessi-sub000/internal/adapters/gateway"
	"github.com/erdum/Necessi-sub000/internal/config"
	appdb "github.com/erdum/Necessi-sub000/internal/database"
	"github.com/erdum/Necessi-sub000/internal/domain/bids"
	"github.com/erdum/Necessi-sub000/internal/domain/settlement"
	"github.com/erdum/Necessi-sub000/internal/events"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// 1. Initialize Postgres Connection Pool
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := events.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	// 3. Check Redis (served by the worker, but good for health)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis connection failed (API might still work)", "error", err)
	} else {
		logger.Info("Redis Connected")
	}

	// 4. Initialize Repositories (Infrastructure Layer)
	txManager := appdb.NewPostgresTransactionManager(pool, 3*time.Second)
	bidRepo := database.NewPostgresBidRepository(pool)
	postRepo := database.NewPostgresPostRepository(pool)
	userRepo := database.NewPostgresUserRepository(pool)
	orderRepo := database.NewPostgresOrderRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	// 5. Initialize Services (Domain Layer)
	bidService := bids.NewService(
		txManager,
		bidRepo,
		postRepo,
		userRepo,
		orderRepo,
		outboxRepo,
		bids.AwardPolicy(cfg.AwardPolicy),
	)

	stripeGateway := gateway.NewStripeGateway(cfg.StripeSecretKey, logger)
	settlementService := settlement.NewService(
		txManager,
		bidRepo,
		postRepo,
		userRepo,
		orderRepo,
		orderRepo,
		outboxRepo,
		stripeGateway,
		time.Duration(cfg.GatewayTimeoutSecs)*time.Second,
		logger,
	)

	// 6. Start Outbox Relay
	outboxRelay := events.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		cfg.OutboxBatchSize,
		time.Duration(cfg.OutboxIntervalSecs)*time.Second,
		events.Exchange,
		logger,
	)

	// Run relay in background
	go func() {
		logger.Info("Starting Outbox Relay...")
		if err := outboxRelay.Run(ctx); err != nil {
			logger.Error("Outbox Relay stopped", "error", err)
		}
	}()

	// 7. Start Server
	handler := api.NewHandler(bidService, settlementService, logger)
	webhookHandler := api.NewWebhookHandler(settlementService, cfg.StripeWebhookSecret, logger)
	router := api.NewRouter(handler, webhookHandler, cfg.JWTSecret, logger)

	logger.Info("Starting Settlement API", "addr", cfg.HTTPAddr)

	srv := api.NewServer(cfg.HTTPAddr, router)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
