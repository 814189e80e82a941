package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aikokik/bookabl-api/internal/availability"
	"github.com/aikokik/bookabl-api/internal/domain"
)

// MemoryStore implements ReservationStore and ResourceStore in process
// memory. Writes on a resource serialize through a per-resource mutex, the
// same critical-section shape the Postgres store gets from advisory locks,
// so the concurrency properties of the engine hold identically. Used by unit
// tests and by local development with STORE_DRIVER=memory.
type MemoryStore struct {
	mu            sync.RWMutex
	resourceLocks sync.Map // resourceID -> *sync.Mutex

	resources    map[string]*domain.Resource
	holds        map[string]*domain.Hold
	reservations map[string]*domain.Reservation
	resByHold    map[string]string // holdID -> reservationID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources:    make(map[string]*domain.Resource),
		holds:        make(map[string]*domain.Hold),
		reservations: make(map[string]*domain.Reservation),
		resByHold:    make(map[string]string),
	}
}

// lockResource takes the per-resource critical section. Disjoint resources
// proceed fully in parallel.
func (s *MemoryStore) lockResource(resourceID string) *sync.Mutex {
	v, _ := s.resourceLocks.LoadOrStore(resourceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// ListActive returns a consistent snapshot of active records overlapping window.
func (s *MemoryStore) ListActive(ctx context.Context, resourceID string, window domain.Interval, now time.Time) (*ActiveSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeSetLocked(resourceID, window, now), nil
}

// activeSetLocked collects active records; callers hold at least a read lock.
func (s *MemoryStore) activeSetLocked(resourceID string, window domain.Interval, now time.Time) *ActiveSet {
	set := &ActiveSet{}
	for _, h := range s.holds {
		if h.ResourceID == resourceID && h.ActiveAt(now) && h.Interval.Overlaps(window) {
			c := *h
			set.Holds = append(set.Holds, &c)
		}
	}
	for _, r := range s.reservations {
		if r.ResourceID == resourceID && r.IsConfirmed() && r.Interval.Overlaps(window) {
			c := *r
			set.Reservations = append(set.Reservations, &c)
		}
	}
	sort.Slice(set.Holds, func(i, j int) bool { return set.Holds[i].Interval.Start.Before(set.Holds[j].Interval.Start) })
	sort.Slice(set.Reservations, func(i, j int) bool {
		return set.Reservations[i].Interval.Start.Before(set.Reservations[j].Interval.Start)
	})
	return set
}

// CreateHold performs the atomic capacity-check-and-insert.
func (s *MemoryStore) CreateHold(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error {
	if err := hold.Validate(); err != nil {
		return err
	}
	mu := s.lockResource(hold.ResourceID)
	defer mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.activeSetLocked(hold.ResourceID, hold.Interval, now)
	occupied := append(active.Intervals(), hold.Interval)
	if availability.PeakOccupancy(occupied, hold.Interval) > capacity {
		return domain.ErrCapacityExceeded
	}

	c := *hold
	s.holds[hold.ID] = &c
	return nil
}

// GetHold returns a hold by ID, expired or not.
func (s *MemoryStore) GetHold(ctx context.Context, holdID string) (*domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[holdID]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	c := *h
	return &c, nil
}

// PromoteHold converts a live hold into a confirmed reservation.
func (s *MemoryStore) PromoteHold(ctx context.Context, holdID, reservationID string, capacity int, now time.Time) (*domain.Reservation, error) {
	s.mu.RLock()
	h, ok := s.holds[holdID]
	var resourceID string
	if ok {
		resourceID = h.ResourceID
	}
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrHoldNotFound
	}

	mu := s.lockResource(resourceID)
	defer mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-read under the lock; a concurrent sweep or release may have won.
	h, ok = s.holds[holdID]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	if h.IsExpiredAt(now) {
		delete(s.holds, holdID)
		return nil, domain.ErrHoldExpired
	}

	// Capacity may have shrunk between hold and confirm; re-validate against
	// everything else that is active.
	active := s.activeSetLocked(h.ResourceID, h.Interval, now)
	occupied := make([]domain.Interval, 0, len(active.Holds)+len(active.Reservations))
	for _, other := range active.Holds {
		if other.ID != h.ID {
			occupied = append(occupied, other.Interval)
		}
	}
	for _, r := range active.Reservations {
		occupied = append(occupied, r.Interval)
	}
	occupied = append(occupied, h.Interval)
	if availability.PeakOccupancy(occupied, h.Interval) > capacity {
		delete(s.holds, holdID)
		return nil, domain.ErrCapacityExceeded
	}

	res := &domain.Reservation{
		ID:          reservationID,
		ResourceID:  h.ResourceID,
		OwnerID:     h.OwnerID,
		HoldID:      h.ID,
		Interval:    h.Interval,
		Status:      domain.ReservationStatusConfirmed,
		Version:     1,
		CreatedAt:   h.CreatedAt,
		ConfirmedAt: now,
		UpdatedAt:   now,
	}
	s.reservations[res.ID] = res
	s.resByHold[h.ID] = res.ID
	delete(s.holds, holdID)

	c := *res
	return &c, nil
}

// ReleaseHold deletes an unconfirmed hold owned by ownerID.
func (s *MemoryStore) ReleaseHold(ctx context.Context, holdID, ownerID string) (*domain.Hold, error) {
	s.mu.RLock()
	h, ok := s.holds[holdID]
	var resourceID string
	if ok {
		resourceID = h.ResourceID
	}
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrHoldNotFound
	}

	mu := s.lockResource(resourceID)
	defer mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok = s.holds[holdID]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	if !h.BelongsTo(ownerID) {
		return nil, domain.ErrNotOwner
	}
	delete(s.holds, holdID)
	c := *h
	return &c, nil
}

// GetReservation returns a reservation by ID.
func (s *MemoryStore) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	c := *r
	return &c, nil
}

// GetReservationByHoldID returns the reservation a hold was promoted into.
func (s *MemoryStore) GetReservationByHoldID(ctx context.Context, holdID string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resByHold[holdID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	c := *s.reservations[id]
	return &c, nil
}

// CancelReservation performs the optimistic-concurrency cancel.
func (s *MemoryStore) CancelReservation(ctx context.Context, reservationID string, expectedVersion int64, now time.Time) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	if r.IsCancelled() {
		return nil, domain.ErrAlreadyCancelled
	}
	if r.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if err := r.Cancel(now); err != nil {
		return nil, err
	}
	c := *r
	return &c, nil
}

// SweepExpired deletes up to limit holds past their expiry.
func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []*domain.Hold
	for id, h := range s.holds {
		if limit > 0 && len(swept) >= limit {
			break
		}
		if h.IsExpiredAt(now) {
			c := *h
			swept = append(swept, &c)
			delete(s.holds, id)
		}
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].ExpiresAt.Before(swept[j].ExpiresAt) })
	return swept, nil
}

// GetResource returns a catalog entry.
func (s *MemoryStore) GetResource(ctx context.Context, resourceID string) (*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[resourceID]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	c := *r
	return &c, nil
}

// ListResources pages through the catalog ordered by ID.
func (s *MemoryStore) ListResources(ctx context.Context, limit, offset int) ([]*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.resources))
	for id := range s.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*domain.Resource
	for i := offset; i < len(ids) && (limit <= 0 || len(out) < limit); i++ {
		c := *s.resources[ids[i]]
		out = append(out, &c)
	}
	return out, nil
}

// CreateResource adds a catalog entry.
func (s *MemoryStore) CreateResource(ctx context.Context, resource *domain.Resource) error {
	if err := resource.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *resource
	if c.Capacity == 0 {
		c.Capacity = 1
	}
	s.resources[c.ID] = &c
	return nil
}

// UpdateCapacity changes capacity, refusing shrinks that would put confirmed
// reservations over the new limit.
func (s *MemoryStore) UpdateCapacity(ctx context.Context, resourceID string, capacity int, now time.Time) (*domain.Resource, error) {
	if capacity < 1 {
		return nil, domain.ErrInvalidCapacity
	}

	mu := s.lockResource(resourceID)
	defer mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[resourceID]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}

	if capacity < r.Capacity {
		var confirmed []domain.Interval
		var lo, hi time.Time
		for _, res := range s.reservations {
			if res.ResourceID == resourceID && res.IsConfirmed() && res.Interval.End.After(now) {
				confirmed = append(confirmed, res.Interval)
				if lo.IsZero() || res.Interval.Start.Before(lo) {
					lo = res.Interval.Start
				}
				if res.Interval.End.After(hi) {
					hi = res.Interval.End
				}
			}
		}
		if len(confirmed) > 0 && availability.PeakOccupancy(confirmed, domain.Interval{Start: lo, End: hi}) > capacity {
			return nil, domain.ErrCapacityInUse
		}
	}

	r.Capacity = capacity
	r.UpdatedAt = now
	c := *r
	return &c, nil
}
