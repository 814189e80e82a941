package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/repository"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

// ConflictResolver decides whether a requested interval can be claimed.
// It never reads then writes: the atomic capacity check lives in the store's
// CreateHold, so any number of concurrent callers race safely and at most
// capacity of them win any instant.
type ConflictResolver interface {
	// TryReserve validates the interval and attempts to place a hold.
	// Returns ErrInvalidInterval for malformed or out-of-policy intervals and
	// ErrCapacityExceeded when the resource is saturated.
	TryReserve(ctx context.Context, resource *domain.Resource, interval domain.Interval, ownerID string) (*domain.Hold, error)
}

type conflictResolver struct {
	store   repository.ReservationStore
	policy  domain.IntervalPolicy
	holdTTL time.Duration
	now     func() time.Time
}

// NewConflictResolver creates a resolver with the given interval policy and
// hold TTL.
func NewConflictResolver(store repository.ReservationStore, policy domain.IntervalPolicy, holdTTL time.Duration) ConflictResolver {
	if holdTTL <= 0 {
		holdTTL = 10 * time.Minute
	}
	return &conflictResolver{
		store:   store,
		policy:  policy,
		holdTTL: holdTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *conflictResolver) TryReserve(ctx context.Context, resource *domain.Resource, interval domain.Interval, ownerID string) (*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.resolver.try_reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("resource_id", resource.ID),
		attribute.String("owner_id", ownerID),
		attribute.String("interval", interval.String()),
	)

	now := r.now()
	if err := r.policy.Validate(interval, now); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if ownerID == "" {
		span.SetStatus(codes.Error, "missing owner")
		return nil, domain.ErrInvalidOwner
	}

	hold := &domain.Hold{
		ID:         uuid.New().String(),
		ResourceID: resource.ID,
		OwnerID:    ownerID,
		Interval:   interval,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.holdTTL),
	}

	if err := r.store.CreateHold(ctx, hold, resource.EffectiveCapacity(), now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("hold_id", hold.ID))
	span.SetStatus(codes.Ok, "")
	return hold, nil
}
