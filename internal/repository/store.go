package repository

import (
	"context"
	"time"

	"github.com/aikokik/bookabl-api/internal/domain"
)

// ActiveSet is a consistent snapshot of everything that blocks capacity on a
// resource inside some window: unexpired holds plus confirmed reservations.
type ActiveSet struct {
	Holds        []*domain.Hold
	Reservations []*domain.Reservation
}

// Intervals flattens the snapshot into the occupancy view the availability
// engine consumes.
func (s *ActiveSet) Intervals() []domain.Interval {
	out := make([]domain.Interval, 0, len(s.Holds)+len(s.Reservations))
	for _, h := range s.Holds {
		out = append(out, h.Interval)
	}
	for _, r := range s.Reservations {
		out = append(out, r.Interval)
	}
	return out
}

// ReservationStore is the single shared mutable resource of the engine. All
// correctness of the no-overlap invariant reduces to CreateHold and
// PromoteHold being atomic per resource; every other component is pure logic
// layered on top of a snapshot.
type ReservationStore interface {
	// ListActive returns a consistent snapshot of unexpired holds and
	// confirmed reservations overlapping window.
	ListActive(ctx context.Context, resourceID string, window domain.Interval, now time.Time) (*ActiveSet, error)

	// CreateHold atomically verifies that admitting the hold keeps peak
	// concurrent occupancy within capacity at every instant of its interval,
	// then inserts it. Fails with domain.ErrCapacityExceeded otherwise.
	// This is the engine's serialization point.
	CreateHold(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error

	// GetHold returns a hold by ID, expired or not.
	GetHold(ctx context.Context, holdID string) (*domain.Hold, error)

	// PromoteHold converts an unexpired hold into a confirmed reservation
	// with the given ID, re-validating capacity (it may have shrunk since
	// the hold was taken). An expired or capacity-starved hold is deleted
	// and the call fails with domain.ErrHoldExpired or
	// domain.ErrCapacityExceeded.
	PromoteHold(ctx context.Context, holdID, reservationID string, capacity int, now time.Time) (*domain.Reservation, error)

	// ReleaseHold deletes an unconfirmed hold owned by ownerID.
	ReleaseHold(ctx context.Context, holdID, ownerID string) (*domain.Hold, error)

	// GetReservation returns a reservation by ID.
	GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error)

	// GetReservationByHoldID returns the reservation a hold was promoted
	// into, supporting idempotent confirms after the hold row is gone.
	GetReservationByHoldID(ctx context.Context, holdID string) (*domain.Reservation, error)

	// CancelReservation flips a confirmed reservation to cancelled iff the
	// stored version matches expectedVersion, bumping the version. Fails
	// with domain.ErrVersionConflict on a stale version and
	// domain.ErrAlreadyCancelled when the record is already terminal.
	CancelReservation(ctx context.Context, reservationID string, expectedVersion int64, now time.Time) (*domain.Reservation, error)

	// SweepExpired deletes up to limit holds past their expiry and returns
	// them. Idempotent; safe to run concurrently from many workers.
	SweepExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error)
}

// ResourceStore is the engine's read-mostly view of the bookable catalog.
type ResourceStore interface {
	GetResource(ctx context.Context, resourceID string) (*domain.Resource, error)
	ListResources(ctx context.Context, limit, offset int) ([]*domain.Resource, error)
	CreateResource(ctx context.Context, resource *domain.Resource) error

	// UpdateCapacity changes a resource's capacity. A shrink that would put
	// already-confirmed reservations over the new limit is rejected with
	// domain.ErrCapacityInUse; existing bookings are never invalidated
	// retroactively.
	UpdateCapacity(ctx context.Context, resourceID string, capacity int, now time.Time) (*domain.Resource, error)
}

// AvailabilityCache caches computed free windows per resource and query
// range. Implementations must support atomic per-resource invalidation so a
// write never leaves stale windows behind.
type AvailabilityCache interface {
	Get(ctx context.Context, resourceID string, query domain.Interval) ([]domain.Interval, bool, error)
	Set(ctx context.Context, resourceID string, query domain.Interval, windows []domain.Interval) error
	Invalidate(ctx context.Context, resourceID string) error
}
