package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/aikokik/bookabl-api/internal/availability"
	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/dto"
	"github.com/aikokik/bookabl-api/internal/repository"
	"github.com/aikokik/bookabl-api/pkg/logger"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

// AvailabilityService computes free windows over a resource's schedule
type AvailabilityService interface {
	// GetAvailability returns the ordered free windows of the resource
	// within [start, end).
	GetAvailability(ctx context.Context, resourceID string, start, end time.Time) (*dto.AvailabilityResponse, error)
}

type availabilityService struct {
	store     repository.ReservationStore
	resources repository.ResourceStore
	cache     repository.AvailabilityCache
	policy    domain.IntervalPolicy
	now       func() time.Time
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(
	store repository.ReservationStore,
	resources repository.ResourceStore,
	cache repository.AvailabilityCache,
	policy domain.IntervalPolicy,
) AvailabilityService {
	if cache == nil {
		cache = repository.NewNoOpAvailabilityCache()
	}
	if policy == (domain.IntervalPolicy{}) {
		policy = domain.DefaultIntervalPolicy()
	}
	return &availabilityService{
		store:     store,
		resources: resources,
		cache:     cache,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *availabilityService) GetAvailability(ctx context.Context, resourceID string, start, end time.Time) (*dto.AvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.availability.get")
	defer span.End()

	span.SetAttributes(attribute.String("resource_id", resourceID))

	query, err := domain.NewInterval(start, end)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resource, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if windows, ok, err := s.cache.Get(ctx, resourceID, query); err == nil && ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		span.SetStatus(codes.Ok, "")
		return buildAvailabilityResponse(resourceID, query, windows, true), nil
	} else if err != nil {
		logger.Get().Warn("availability cache read failed",
			zap.String("resource_id", resourceID), zap.Error(err))
	}

	now := s.now()
	active, err := s.store.ListActive(ctx, resourceID, query, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	windows := availability.CollectFreeWindows(active.Intervals(), query, resource.EffectiveCapacity())

	if err := s.cache.Set(ctx, resourceID, query, windows); err != nil {
		logger.Get().Warn("availability cache write failed",
			zap.String("resource_id", resourceID), zap.Error(err))
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", false),
		attribute.Int("windows", len(windows)),
	)
	span.SetStatus(codes.Ok, "")
	return buildAvailabilityResponse(resourceID, query, windows, false), nil
}

func buildAvailabilityResponse(resourceID string, query domain.Interval, windows []domain.Interval, cached bool) *dto.AvailabilityResponse {
	return &dto.AvailabilityResponse{
		ResourceID: resourceID,
		Start:      query.Start,
		End:        query.End,
		Windows:    dto.WindowsFromDomain(windows),
		Cached:     cached,
	}
}
