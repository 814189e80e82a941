package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aikokik/bookabl-api/internal/di"
	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/metrics"
	"github.com/aikokik/bookabl-api/internal/repository"
	"github.com/aikokik/bookabl-api/internal/service"
	"github.com/aikokik/bookabl-api/internal/worker"
	"github.com/aikokik/bookabl-api/pkg/config"
	"github.com/aikokik/bookabl-api/pkg/database"
	"github.com/aikokik/bookabl-api/pkg/logger"
	"github.com/aikokik/bookabl-api/pkg/middleware"
	pkgredis "github.com/aikokik/bookabl-api/pkg/redis"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

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
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("starting bookabl api",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	// Tracing and metrics
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()
	if _, err := telemetry.InitMetrics(); err != nil {
		appLog.Warn("failed to initialize meter provider", zap.Error(err))
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn("failed to initialize metrics", zap.Error(err))
	}

	// Reservation and resource stores
	var (
		db        *database.PostgresDB
		store     repository.ReservationStore
		resources repository.ResourceStore
	)
	switch cfg.Store.Driver {
	case "memory":
		mem := repository.NewMemoryStore()
		store, resources = mem, mem
		appLog.Info("using in-memory store")
	default:
		db, err = database.NewPostgres(ctx, &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnectTimeout:  5 * time.Second,
			MaxRetries:      3,
			RetryInterval:   1 * time.Second,
		})
		if err != nil {
			appLog.Fatal("database connection failed", zap.Error(err))
		}
		defer db.Close()
		pg := repository.NewPostgresStore(db.Pool())
		store, resources = pg, pg
		appLog.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName))
	}

	// Availability cache (optional)
	var (
		redisClient *pkgredis.Client
		cache       repository.AvailabilityCache
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			MaxRetries:    3,
			RetryInterval: 100 * time.Millisecond,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
		})
		if err != nil {
			appLog.Warn("redis connection failed, availability cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			redisCache := repository.NewRedisAvailabilityCache(redisClient, cfg.Booking.AvailabilityCacheTTL)
			if err := redisCache.LoadScripts(ctx); err != nil {
				appLog.Warn("failed to pre-load Lua scripts", zap.Error(err))
			}
			cache = redisCache
			appLog.Info("redis connected, availability cache enabled")
		}
	}

	// Kafka event publisher (optional)
	var eventPublisher service.EventPublisher
	if cfg.Kafka.Enabled {
		eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn("kafka connection failed, using no-op publisher", zap.Error(err))
			eventPublisher = service.NewNoOpEventPublisher()
		} else {
			appLog.Info("kafka event publisher connected")
		}
	}

	policy := domain.IntervalPolicy{
		PastHorizon:   cfg.Booking.PastHorizon,
		FutureHorizon: cfg.Booking.FutureHorizon,
		MaxSpan:       cfg.Booking.MaxSpan,
	}

	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		Store:          store,
		Resources:      resources,
		Cache:          cache,
		EventPublisher: eventPublisher,
		ServiceConfig: &service.BookingServiceConfig{
			HoldTTL: cfg.Booking.HoldTTL,
			Policy:  policy,
		},
		WorkerConfig: &worker.SweepWorkerConfig{
			SweepInterval: cfg.Booking.SweepInterval,
			BatchSize:     cfg.Booking.SweepBatchSize,
		},
	})

	if err := container.SweepWorker.Start(ctx); err != nil {
		appLog.Fatal("failed to start sweep worker", zap.Error(err))
	}
	defer container.SweepWorker.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		gin.DisableConsoleColor()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.App.Name))
	}

	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	auth := middleware.AuthMiddleware(&middleware.AuthConfig{
		Secret:              cfg.JWT.Secret,
		Issuer:              cfg.JWT.Issuer,
		AllowHeaderFallback: !cfg.IsProduction(),
	})

	// Idempotency protection needs Redis; without it writes go through bare.
	idem := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	if redisClient != nil {
		idemCfg := middleware.DefaultIdempotencyConfig(redisClient.Client())
		idemCfg.TTL = cfg.Booking.IdempotencyTTL
		idemCfg.SkipPaths = []string{"/health", "/ready"}
		idem = middleware.IdempotencyMiddleware(idemCfg)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		resourceRoutes := v1.Group("/resources")
		{
			resourceRoutes.POST("", container.ResourceHandler.CreateResource)
			resourceRoutes.GET("", container.ResourceHandler.ListResources)
			resourceRoutes.GET("/:id", container.ResourceHandler.GetResource)
			resourceRoutes.PATCH("/:id/capacity", container.ResourceHandler.UpdateCapacity)
			resourceRoutes.GET("/:id/availability", container.AvailabilityHandler.GetAvailability)
			resourceRoutes.POST("/:id/holds", auth, idem, container.BookingHandler.PlaceHold)
		}

		holdRoutes := v1.Group("/holds", auth)
		{
			holdRoutes.POST("/:id/confirm", idem, container.BookingHandler.ConfirmHold)
			holdRoutes.DELETE("/:id", idem, container.BookingHandler.ReleaseHold)
		}

		reservationRoutes := v1.Group("/reservations", auth)
		{
			reservationRoutes.POST("/:id/cancel", idem, container.BookingHandler.CancelReservation)
			reservationRoutes.GET("/:id", container.BookingHandler.GetReservation)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info("bookabl api listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal("server forced to shutdown", zap.Error(err))
	}

	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			appLog.Warn("failed to close event publisher", zap.Error(err))
		}
	}

	appLog.Info("server exited gracefully")
}
