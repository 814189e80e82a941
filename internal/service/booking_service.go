package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/dto"
	"github.com/aikokik/bookabl-api/internal/metrics"
	"github.com/aikokik/bookabl-api/internal/repository"
	"github.com/aikokik/bookabl-api/pkg/logger"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

// BookingService defines the interface for the reservation lifecycle
type BookingService interface {
	// PlaceHold claims an interval on a resource for the owner
	PlaceHold(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error)

	// ConfirmHold promotes a hold into a durable reservation. Idempotent:
	// confirming an already-promoted hold returns the existing reservation.
	ConfirmHold(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error)

	// ReleaseHold drops an unconfirmed hold before it expires
	ReleaseHold(ctx context.Context, holdID, ownerID string) (*dto.ReleaseResponse, error)

	// CancelReservation cancels a confirmed reservation at the given version
	CancelReservation(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error)

	// GetReservation retrieves a reservation the owner can see
	GetReservation(ctx context.Context, reservationID, ownerID string) (*dto.ReservationResponse, error)

	// CreateResource adds a bookable resource
	CreateResource(ctx context.Context, req *dto.CreateResourceRequest) (*dto.ResourceResponse, error)

	// GetResource retrieves a resource by ID
	GetResource(ctx context.Context, resourceID string) (*dto.ResourceResponse, error)

	// ListResources pages through the resource catalog
	ListResources(ctx context.Context, limit, offset int) (*dto.ResourceListResponse, error)

	// UpdateCapacity changes a resource's capacity, refusing shrinks that
	// would strand confirmed reservations
	UpdateCapacity(ctx context.Context, resourceID string, req *dto.UpdateCapacityRequest) (*dto.ResourceResponse, error)
}

// bookingService implements BookingService
type bookingService struct {
	store     repository.ReservationStore
	resources repository.ResourceStore
	cache     repository.AvailabilityCache
	resolver  ConflictResolver
	publisher EventPublisher
	now       func() time.Time
}

// BookingServiceConfig contains configuration for the booking service
type BookingServiceConfig struct {
	HoldTTL time.Duration
	Policy  domain.IntervalPolicy
}

// NewBookingService creates a new booking service
func NewBookingService(
	store repository.ReservationStore,
	resources repository.ResourceStore,
	cache repository.AvailabilityCache,
	publisher EventPublisher,
	cfg *BookingServiceConfig,
) BookingService {
	ttl := 10 * time.Minute
	policy := domain.DefaultIntervalPolicy()
	if cfg != nil {
		if cfg.HoldTTL > 0 {
			ttl = cfg.HoldTTL
		}
		if cfg.Policy != (domain.IntervalPolicy{}) {
			policy = cfg.Policy
		}
	}
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	if cache == nil {
		cache = repository.NewNoOpAvailabilityCache()
	}
	return &bookingService{
		store:     store,
		resources: resources,
		cache:     cache,
		resolver:  NewConflictResolver(store, policy, ttl),
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PlaceHold claims an interval on a resource for the owner
func (s *bookingService) PlaceHold(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.place_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("resource_id", resourceID),
		attribute.String("owner_id", ownerID),
	)

	if req == nil {
		span.SetStatus(codes.Error, "missing request body")
		return nil, domain.ErrInvalidInterval
	}
	interval, err := domain.NewInterval(req.Start, req.End)
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

	hold, err := s.resolver.TryReserve(ctx, resource, interval, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			metrics.RecordConflict(ctx, resourceID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.invalidateAvailability(ctx, resourceID)
	if err := s.publisher.PublishHoldPlaced(ctx, hold); err != nil {
		logger.Get().Warn("failed to publish hold placed event",
			zap.String("hold_id", hold.ID), zap.Error(err))
	}
	metrics.RecordHold(ctx, resourceID)

	span.AddEvent("hold_placed", trace.WithAttributes(
		attribute.String("hold_id", hold.ID),
		attribute.String("expires_at", hold.ExpiresAt.Format(time.RFC3339)),
	))
	span.SetStatus(codes.Ok, "")
	return dto.HoldFromDomain(hold), nil
}

// ConfirmHold promotes a hold into a durable reservation
func (s *bookingService) ConfirmHold(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.confirm_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("owner_id", ownerID),
	)

	if holdID == "" {
		span.SetStatus(codes.Error, "missing hold id")
		return nil, domain.ErrInvalidHoldID
	}

	hold, err := s.store.GetHold(ctx, holdID)
	if err != nil {
		if errors.Is(err, domain.ErrHoldNotFound) {
			// The hold may already be promoted; redelivered confirms land here.
			return s.confirmedByHoldID(ctx, span, holdID, ownerID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !hold.BelongsTo(ownerID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrNotOwner
	}

	resource, err := s.resources.GetResource(ctx, hold.ResourceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	reservation, err := s.store.PromoteHold(ctx, holdID, uuid.New().String(), resource.EffectiveCapacity(), now)
	if err != nil {
		if errors.Is(err, domain.ErrHoldNotFound) {
			// Lost a race with another confirm of the same hold.
			return s.confirmedByHoldID(ctx, span, holdID, ownerID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.invalidateAvailability(ctx, reservation.ResourceID)
	if err := s.publisher.PublishReservationConfirmed(ctx, reservation); err != nil {
		logger.Get().Warn("failed to publish reservation confirmed event",
			zap.String("reservation_id", reservation.ID), zap.Error(err))
	}
	metrics.RecordConfirmation(ctx, reservation.ResourceID, now.Sub(hold.CreatedAt).Seconds())

	span.SetAttributes(attribute.String("reservation_id", reservation.ID))
	span.SetStatus(codes.Ok, "")
	return confirmResponse(reservation), nil
}

// confirmedByHoldID resolves a confirm for a hold that no longer exists. If
// the hold was promoted, the existing reservation is returned; otherwise the
// hold genuinely is gone.
func (s *bookingService) confirmedByHoldID(ctx context.Context, span trace.Span, holdID, ownerID string) (*dto.ConfirmResponse, error) {
	reservation, err := s.store.GetReservationByHoldID(ctx, holdID)
	if err != nil {
		span.SetStatus(codes.Error, "hold not found")
		return nil, domain.ErrHoldNotFound
	}
	if !reservation.BelongsTo(ownerID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrNotOwner
	}
	span.SetAttributes(
		attribute.String("reservation_id", reservation.ID),
		attribute.Bool("idempotent_replay", true),
	)
	span.SetStatus(codes.Ok, "")
	return confirmResponse(reservation), nil
}

// ReleaseHold drops an unconfirmed hold before it expires
func (s *bookingService) ReleaseHold(ctx context.Context, holdID, ownerID string) (*dto.ReleaseResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.release_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("owner_id", ownerID),
	)

	if holdID == "" {
		span.SetStatus(codes.Error, "missing hold id")
		return nil, domain.ErrInvalidHoldID
	}

	hold, err := s.store.ReleaseHold(ctx, holdID, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.invalidateAvailability(ctx, hold.ResourceID)
	if err := s.publisher.PublishHoldReleased(ctx, hold); err != nil {
		logger.Get().Warn("failed to publish hold released event",
			zap.String("hold_id", hold.ID), zap.Error(err))
	}
	metrics.RecordRelease(ctx, hold.ResourceID)

	span.SetStatus(codes.Ok, "")
	return &dto.ReleaseResponse{
		HoldID:  hold.ID,
		Status:  "released",
		Message: "hold released",
	}, nil
}

// CancelReservation cancels a confirmed reservation at the given version
func (s *bookingService) CancelReservation(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.cancel_reservation")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("owner_id", ownerID),
	)

	if req == nil || req.Version <= 0 {
		span.SetStatus(codes.Error, "missing version")
		return nil, domain.ErrVersionConflict
	}

	current, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !current.BelongsTo(ownerID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrNotOwner
	}

	now := s.now()
	cancelled, err := s.store.CancelReservation(ctx, reservationID, req.Version, now)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCancelled) {
			// Already in the requested state; report it as-is.
			span.SetAttributes(attribute.Bool("idempotent_replay", true))
			span.SetStatus(codes.Ok, "")
			return cancelResponse(currentState(ctx, s.store, reservationID, current)), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.invalidateAvailability(ctx, cancelled.ResourceID)
	if err := s.publisher.PublishReservationCancelled(ctx, cancelled); err != nil {
		logger.Get().Warn("failed to publish reservation cancelled event",
			zap.String("reservation_id", cancelled.ID), zap.Error(err))
	}
	metrics.RecordCancellation(ctx, cancelled.ResourceID)

	span.SetStatus(codes.Ok, "")
	return cancelResponse(cancelled), nil
}

// GetReservation retrieves a reservation the owner can see
func (s *bookingService) GetReservation(ctx context.Context, reservationID, ownerID string) (*dto.ReservationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.get_reservation")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !reservation.BelongsTo(ownerID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrNotOwner
	}

	span.SetStatus(codes.Ok, "")
	return dto.ReservationFromDomain(reservation), nil
}

// CreateResource adds a bookable resource
func (s *bookingService) CreateResource(ctx context.Context, req *dto.CreateResourceRequest) (*dto.ResourceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.create_resource")
	defer span.End()

	now := s.now()
	resource := &domain.Resource{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Capacity:  req.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.resources.CreateResource(ctx, resource); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("resource_id", resource.ID))
	span.SetStatus(codes.Ok, "")
	return dto.ResourceFromDomain(resource), nil
}

// GetResource retrieves a resource by ID
func (s *bookingService) GetResource(ctx context.Context, resourceID string) (*dto.ResourceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.get_resource")
	defer span.End()

	resource, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.ResourceFromDomain(resource), nil
}

// ListResources pages through the resource catalog
func (s *bookingService) ListResources(ctx context.Context, limit, offset int) (*dto.ResourceListResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.list_resources")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	resources, err := s.resources.ListResources(ctx, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]*dto.ResourceResponse, 0, len(resources))
	for _, r := range resources {
		out = append(out, dto.ResourceFromDomain(r))
	}

	span.SetAttributes(attribute.Int("count", len(out)))
	span.SetStatus(codes.Ok, "")
	return &dto.ResourceListResponse{Resources: out, Limit: limit, Offset: offset}, nil
}

// UpdateCapacity changes a resource's capacity
func (s *bookingService) UpdateCapacity(ctx context.Context, resourceID string, req *dto.UpdateCapacityRequest) (*dto.ResourceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.update_capacity")
	defer span.End()

	span.SetAttributes(
		attribute.String("resource_id", resourceID),
		attribute.Int("capacity", req.Capacity),
	)

	resource, err := s.resources.UpdateCapacity(ctx, resourceID, req.Capacity, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.invalidateAvailability(ctx, resourceID)

	span.SetStatus(codes.Ok, "")
	return dto.ResourceFromDomain(resource), nil
}

// invalidateAvailability drops cached windows. Cache failures are logged,
// never surfaced: the TTL bounds staleness either way.
func (s *bookingService) invalidateAvailability(ctx context.Context, resourceID string) {
	if err := s.cache.Invalidate(ctx, resourceID); err != nil {
		logger.Get().Warn("failed to invalidate availability cache",
			zap.String("resource_id", resourceID), zap.Error(err))
	}
}

// currentState re-reads the reservation, falling back to the last seen copy.
func currentState(ctx context.Context, store repository.ReservationStore, reservationID string, fallback *domain.Reservation) *domain.Reservation {
	if fresh, err := store.GetReservation(ctx, reservationID); err == nil {
		return fresh
	}
	return fallback
}

func confirmResponse(r *domain.Reservation) *dto.ConfirmResponse {
	return &dto.ConfirmResponse{
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		Status:        string(r.Status),
		Version:       r.Version,
		Start:         r.Interval.Start,
		End:           r.Interval.End,
		ConfirmedAt:   r.ConfirmedAt,
	}
}

func cancelResponse(r *domain.Reservation) *dto.CancelResponse {
	resp := &dto.CancelResponse{
		ReservationID: r.ID,
		Status:        string(r.Status),
		Version:       r.Version,
	}
	if r.CancelledAt != nil {
		resp.CancelledAt = *r.CancelledAt
	}
	return resp
}
