package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aikokik/bookabl-api/internal/repository"
	"github.com/aikokik/bookabl-api/internal/service"
	"github.com/aikokik/bookabl-api/internal/worker"
	"github.com/aikokik/bookabl-api/pkg/config"
	"github.com/aikokik/bookabl-api/pkg/database"
	"github.com/aikokik/bookabl-api/pkg/logger"
	pkgredis "github.com/aikokik/bookabl-api/pkg/redis"
)

// Standalone sweep worker. Runs the same expiry sweep the API embeds, for
// deployments that scale the sweep independently of the request path.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	if _, err := logger.Init(&logger.Config{
		Level:       logLevel,
		ServiceName: "sweep-worker",
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("starting sweep worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	appLog.Info("database connected")

	store := repository.NewPostgresStore(db.Pool())

	var cache repository.AvailabilityCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      20,
			MinIdleConns:  5,
			MaxRetries:    3,
			RetryInterval: 2 * time.Second,
		})
		if err != nil {
			appLog.Warn("redis connection failed, cache invalidation disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			redisCache := repository.NewRedisAvailabilityCache(redisClient, cfg.Booking.AvailabilityCacheTTL)
			if err := redisCache.LoadScripts(ctx); err != nil {
				appLog.Warn("failed to pre-load Lua scripts", zap.Error(err))
			}
			cache = redisCache
			appLog.Info("redis connected")
		}
	}

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		publisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: "sweep-worker",
			ClientID:    "sweep-worker",
		})
		if err != nil {
			appLog.Warn("kafka connection failed, using no-op publisher", zap.Error(err))
			publisher = service.NewNoOpEventPublisher()
		} else {
			defer publisher.Close()
			appLog.Info("kafka event publisher connected")
		}
	}

	sweepWorker := worker.NewSweepWorker(store, cache, publisher, &worker.SweepWorkerConfig{
		SweepInterval: cfg.Booking.SweepInterval,
		BatchSize:     cfg.Booking.SweepBatchSize,
	})

	if err := sweepWorker.Start(ctx); err != nil {
		appLog.Fatal("failed to start worker", zap.Error(err))
	}

	appLog.Info("sweep worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down worker")
	sweepWorker.Stop()
	cancel()

	appLog.Info("worker exited gracefully")
}
