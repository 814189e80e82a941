package di

import (
	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/handler"
	"github.com/aikokik/bookabl-api/internal/repository"
	"github.com/aikokik/bookabl-api/internal/service"
	"github.com/aikokik/bookabl-api/internal/worker"
	"github.com/aikokik/bookabl-api/pkg/database"
	pkgredis "github.com/aikokik/bookabl-api/pkg/redis"
)

// Container holds all dependencies for the booking engine
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *pkgredis.Client

	// Stores
	Store     repository.ReservationStore
	Resources repository.ResourceStore
	Cache     repository.AvailabilityCache

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	BookingService      service.BookingService
	AvailabilityService service.AvailabilityService

	// Workers
	SweepWorker *worker.SweepWorker

	// Handlers
	HealthHandler       *handler.HealthHandler
	BookingHandler      *handler.BookingHandler
	AvailabilityHandler *handler.AvailabilityHandler
	ResourceHandler     *handler.ResourceHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *pkgredis.Client
	Store          repository.ReservationStore
	Resources      repository.ResourceStore
	Cache          repository.AvailabilityCache
	EventPublisher service.EventPublisher
	ServiceConfig  *service.BookingServiceConfig
	WorkerConfig   *worker.SweepWorkerConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		Store:          cfg.Store,
		Resources:      cfg.Resources,
		Cache:          cfg.Cache,
		EventPublisher: cfg.EventPublisher,
	}
	if c.Cache == nil {
		c.Cache = repository.NewNoOpAvailabilityCache()
	}
	if c.EventPublisher == nil {
		c.EventPublisher = service.NewNoOpEventPublisher()
	}

	policy := domain.DefaultIntervalPolicy()
	if cfg.ServiceConfig != nil && cfg.ServiceConfig.Policy != (domain.IntervalPolicy{}) {
		policy = cfg.ServiceConfig.Policy
	}

	// Initialize services
	c.BookingService = service.NewBookingService(
		c.Store,
		c.Resources,
		c.Cache,
		c.EventPublisher,
		cfg.ServiceConfig,
	)
	c.AvailabilityService = service.NewAvailabilityService(
		c.Store,
		c.Resources,
		c.Cache,
		policy,
	)

	// Initialize workers
	c.SweepWorker = worker.NewSweepWorker(c.Store, c.Cache, c.EventPublisher, cfg.WorkerConfig)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.BookingHandler = handler.NewBookingHandler(c.BookingService)
	c.AvailabilityHandler = handler.NewAvailabilityHandler(c.AvailabilityService)
	c.ResourceHandler = handler.NewResourceHandler(c.BookingService)

	return c
}
