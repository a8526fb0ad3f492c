package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KeremAR/Microservice/internal/api"
	"github.com/KeremAR/Microservice/internal/cache"
	"github.com/KeremAR/Microservice/internal/identity"
	"github.com/KeremAR/Microservice/internal/profile"
	"github.com/KeremAR/Microservice/internal/reconcile"
	"github.com/KeremAR/Microservice/pkg/config"
	"github.com/KeremAR/Microservice/pkg/postgres"
	"github.com/KeremAR/Microservice/pkg/rabbitmq"

	"github.com/redis/go-redis/v9"

	_ "github.com/KeremAR/Microservice/docs"
)

// @title           User Service API
// @version         1.0
// @description     Signup, login and profile reconciliation between the identity provider and the profile store. Publishes user events to RabbitMQ.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	logger.Info("starting api-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.RunPoolMigrations(ctx, pool, "api"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	store := profile.NewStore(pool, cfg.StoreTimeout)

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

	publisher := rabbitmq.NewPublisher(conn, rabbitmq.PublisherConfig{
		URL:         cfg.RabbitMQURL,
		MaxAttempts: cfg.PublishAttempts,
		RetryDelay:  cfg.PublishDelay,
		Timeout:     cfg.PublishTimeout,
	}, logger)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	responses := cache.New(rdb, cache.Options{TTL: cfg.CacheTTL, Timeout: cfg.CacheTimeout}, logger)

	tokens, err := identity.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		logger.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}
	kratos := identity.NewKratos(identity.KratosConfig{
		AdminURL:  cfg.KratosAdminURL,
		PublicURL: cfg.KratosPublicURL,
		SchemaID:  cfg.KratosSchemaID,
		Timeout:   cfg.IDPTimeout,
	}, logger)
	idp := identity.NewClient(kratos, tokens)

	service := reconcile.New(idp, store, publisher, responses, logger)
	handler := api.NewUserHandler(service, responses, logger)

	router, err := api.NewRouter(handler, idp,
		api.ReadinessCheck{Name: "postgres", Probe: store.Ping},
		api.ReadinessCheck{Name: "rabbitmq", Probe: func(context.Context) error {
			if !conn.IsLive() {
				return errors.New("connection closed")
			}
			return nil
		}},
		api.ReadinessCheck{Name: "redis", Probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
	)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}
	logger.Info("server exited gracefully")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).With("service", "api-service")
}
