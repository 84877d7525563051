package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/erdum/Necessi-sub000/internal/adapters/database"
	"github.com/erdum/Necessi-sub000/internal/config"
	appdb "github.com/erdum/Necessi-sub000/internal/database"
	"github.com/erdum/Necessi-sub000/internal/domain/bids"
	"github.com/erdum/Necessi-sub000/internal/events"
	"github.com/erdum/Necessi-sub000/internal/jobs"
	"github.com/erdum/Necessi-sub000/internal/notify"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down scheduler...")
		cancel()
	}()

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

	// 2. Connect to RabbitMQ for reminder dispatch
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

	// 3. Wire the sweeper. Expiry goes through the bid lifecycle engine so
	// stale-bid purges emit the same mirror-sync events as user withdrawals.
	txManager := appdb.NewPostgresTransactionManager(pool, 3*time.Second)
	bidRepo := database.NewPostgresBidRepository(pool)
	postRepo := database.NewPostgresPostRepository(pool)
	userRepo := database.NewPostgresUserRepository(pool)
	orderRepo := database.NewPostgresOrderRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	bidService := bids.NewService(
		txManager,
		bidRepo,
		postRepo,
		userRepo,
		orderRepo,
		outboxRepo,
		bids.AwardPolicy(cfg.AwardPolicy),
	)

	sweepRepo := database.NewPostgresSweepRepository(pool)
	notifier := notify.NewAMQPNotifier(rabbitPublisher)
	sweeper := jobs.NewSweeper(sweepRepo, bidService, notifier, logger)

	logger.Info("Starting Settlement Sweeper...")
	if runErr := sweeper.Run(ctx); runErr != nil {
		logger.Error("Sweeper failed", "error", runErr)
		if ctx.Err() == nil {
			os.Exit(1)
		}
	}

	logger.Info("Scheduler stopped")
}
