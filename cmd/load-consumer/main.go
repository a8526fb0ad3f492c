package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KeremAR/Microservice/internal/loadstats"
	"github.com/KeremAR/Microservice/pkg/config"
	"github.com/KeremAR/Microservice/pkg/postgres"
	"github.com/KeremAR/Microservice/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "load-consumer")
	logger.Info("starting load-consumer")

	cfg := config.LoadForService("LOADSTATS")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "loadstats"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	conn, err := rabbitmq.Connect(ctx, rabbitmq.ConnectionConfig{
		URL:         cfg.RabbitMQURL,
		MaxAttempts: cfg.BrokerConnectAttempts,
		RetryDelay:  cfg.BrokerConnectDelay,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	consumer := loadstats.NewConsumer(db, logger)
	consumerCfg := rabbitmq.ConsumerConfig{
		QueueName:    rabbitmq.LoadQueue,
		ConsumerName: "load-consumer",
		Prefetch:     10,
	}
	if err := rabbitmq.SetupConsumer(conn, consumerCfg, consumer.HandleMessage, logger); err != nil {
		logger.Error("failed to setup consumer", "error", err)
		os.Exit(1)
	}

	logger.Info("consumer is running, waiting for messages")
	<-ctx.Done()
	logger.Info("shutting down")
}
