package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/dto"
	"github.com/aikokik/bookabl-api/internal/repository"
)

// MockReservationStore is a mock implementation of repository.ReservationStore
type MockReservationStore struct {
	ListActiveFunc             func(ctx context.Context, resourceID string, window domain.Interval, now time.Time) (*repository.ActiveSet, error)
	CreateHoldFunc             func(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error
	GetHoldFunc                func(ctx context.Context, holdID string) (*domain.Hold, error)
	PromoteHoldFunc            func(ctx context.Context, holdID, reservationID string, capacity int, now time.Time) (*domain.Reservation, error)
	ReleaseHoldFunc            func(ctx context.Context, holdID, ownerID string) (*domain.Hold, error)
	GetReservationFunc         func(ctx context.Context, reservationID string) (*domain.Reservation, error)
	GetReservationByHoldIDFunc func(ctx context.Context, holdID string) (*domain.Reservation, error)
	CancelReservationFunc      func(ctx context.Context, reservationID string, expectedVersion int64, now time.Time) (*domain.Reservation, error)
	SweepExpiredFunc           func(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error)
}

func (m *MockReservationStore) ListActive(ctx context.Context, resourceID string, window domain.Interval, now time.Time) (*repository.ActiveSet, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, resourceID, window, now)
	}
	return &repository.ActiveSet{}, nil
}

func (m *MockReservationStore) CreateHold(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error {
	if m.CreateHoldFunc != nil {
		return m.CreateHoldFunc(ctx, hold, capacity, now)
	}
	return nil
}

func (m *MockReservationStore) GetHold(ctx context.Context, holdID string) (*domain.Hold, error) {
	if m.GetHoldFunc != nil {
		return m.GetHoldFunc(ctx, holdID)
	}
	return nil, domain.ErrHoldNotFound
}

func (m *MockReservationStore) PromoteHold(ctx context.Context, holdID, reservationID string, capacity int, now time.Time) (*domain.Reservation, error) {
	if m.PromoteHoldFunc != nil {
		return m.PromoteHoldFunc(ctx, holdID, reservationID, capacity, now)
	}
	return nil, domain.ErrHoldNotFound
}

func (m *MockReservationStore) ReleaseHold(ctx context.Context, holdID, ownerID string) (*domain.Hold, error) {
	if m.ReleaseHoldFunc != nil {
		return m.ReleaseHoldFunc(ctx, holdID, ownerID)
	}
	return nil, domain.ErrHoldNotFound
}

func (m *MockReservationStore) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	if m.GetReservationFunc != nil {
		return m.GetReservationFunc(ctx, reservationID)
	}
	return nil, domain.ErrReservationNotFound
}

func (m *MockReservationStore) GetReservationByHoldID(ctx context.Context, holdID string) (*domain.Reservation, error) {
	if m.GetReservationByHoldIDFunc != nil {
		return m.GetReservationByHoldIDFunc(ctx, holdID)
	}
	return nil, domain.ErrReservationNotFound
}

func (m *MockReservationStore) CancelReservation(ctx context.Context, reservationID string, expectedVersion int64, now time.Time) (*domain.Reservation, error) {
	if m.CancelReservationFunc != nil {
		return m.CancelReservationFunc(ctx, reservationID, expectedVersion, now)
	}
	return nil, domain.ErrReservationNotFound
}

func (m *MockReservationStore) SweepExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error) {
	if m.SweepExpiredFunc != nil {
		return m.SweepExpiredFunc(ctx, now, limit)
	}
	return nil, nil
}

// MockResourceStore is a mock implementation of repository.ResourceStore
type MockResourceStore struct {
	GetResourceFunc    func(ctx context.Context, resourceID string) (*domain.Resource, error)
	ListResourcesFunc  func(ctx context.Context, limit, offset int) ([]*domain.Resource, error)
	CreateResourceFunc func(ctx context.Context, resource *domain.Resource) error
	UpdateCapacityFunc func(ctx context.Context, resourceID string, capacity int, now time.Time) (*domain.Resource, error)
}

func (m *MockResourceStore) GetResource(ctx context.Context, resourceID string) (*domain.Resource, error) {
	if m.GetResourceFunc != nil {
		return m.GetResourceFunc(ctx, resourceID)
	}
	return &domain.Resource{ID: resourceID, Name: "test-resource", Capacity: 1}, nil
}

func (m *MockResourceStore) ListResources(ctx context.Context, limit, offset int) ([]*domain.Resource, error) {
	if m.ListResourcesFunc != nil {
		return m.ListResourcesFunc(ctx, limit, offset)
	}
	return []*domain.Resource{}, nil
}

func (m *MockResourceStore) CreateResource(ctx context.Context, resource *domain.Resource) error {
	if m.CreateResourceFunc != nil {
		return m.CreateResourceFunc(ctx, resource)
	}
	return nil
}

func (m *MockResourceStore) UpdateCapacity(ctx context.Context, resourceID string, capacity int, now time.Time) (*domain.Resource, error) {
	if m.UpdateCapacityFunc != nil {
		return m.UpdateCapacityFunc(ctx, resourceID, capacity, now)
	}
	return &domain.Resource{ID: resourceID, Capacity: capacity}, nil
}

// MockAvailabilityCache is a mock implementation of repository.AvailabilityCache
type MockAvailabilityCache struct {
	GetFunc        func(ctx context.Context, resourceID string, query domain.Interval) ([]domain.Interval, bool, error)
	SetFunc        func(ctx context.Context, resourceID string, query domain.Interval, windows []domain.Interval) error
	InvalidateFunc func(ctx context.Context, resourceID string) error
}

func (m *MockAvailabilityCache) Get(ctx context.Context, resourceID string, query domain.Interval) ([]domain.Interval, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, resourceID, query)
	}
	return nil, false, nil
}

func (m *MockAvailabilityCache) Set(ctx context.Context, resourceID string, query domain.Interval, windows []domain.Interval) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, resourceID, query, windows)
	}
	return nil
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, resourceID string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, resourceID)
	}
	return nil
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	PublishHoldPlacedFunc           func(ctx context.Context, hold *domain.Hold) error
	PublishHoldReleasedFunc         func(ctx context.Context, hold *domain.Hold) error
	PublishHoldExpiredFunc          func(ctx context.Context, hold *domain.Hold) error
	PublishReservationConfirmedFunc func(ctx context.Context, reservation *domain.Reservation) error
	PublishReservationCancelledFunc func(ctx context.Context, reservation *domain.Reservation) error
}

func (m *MockEventPublisher) PublishHoldPlaced(ctx context.Context, hold *domain.Hold) error {
	if m.PublishHoldPlacedFunc != nil {
		return m.PublishHoldPlacedFunc(ctx, hold)
	}
	return nil
}

func (m *MockEventPublisher) PublishHoldReleased(ctx context.Context, hold *domain.Hold) error {
	if m.PublishHoldReleasedFunc != nil {
		return m.PublishHoldReleasedFunc(ctx, hold)
	}
	return nil
}

func (m *MockEventPublisher) PublishHoldExpired(ctx context.Context, hold *domain.Hold) error {
	if m.PublishHoldExpiredFunc != nil {
		return m.PublishHoldExpiredFunc(ctx, hold)
	}
	return nil
}

func (m *MockEventPublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	if m.PublishReservationConfirmedFunc != nil {
		return m.PublishReservationConfirmedFunc(ctx, reservation)
	}
	return nil
}

func (m *MockEventPublisher) PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error {
	if m.PublishReservationCancelledFunc != nil {
		return m.PublishReservationCancelledFunc(ctx, reservation)
	}
	return nil
}

func (m *MockEventPublisher) Close() error { return nil }

var testDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

// widePolicy accepts any interval in the test day regardless of wall clock.
var widePolicy = domain.IntervalPolicy{
	PastHorizon:   100 * 365 * 24 * time.Hour,
	FutureHorizon: 100 * 365 * 24 * time.Hour,
	MaxSpan:       365 * 24 * time.Hour,
}

func newTestService(store repository.ReservationStore, resources repository.ResourceStore, cache repository.AvailabilityCache, publisher EventPublisher) BookingService {
	return NewBookingService(store, resources, cache, publisher, &BookingServiceConfig{
		HoldTTL: 10 * time.Minute,
		Policy:  widePolicy,
	})
}

func TestPlaceHold_Success(t *testing.T) {
	ctx := context.Background()

	var created *domain.Hold
	store := &MockReservationStore{
		CreateHoldFunc: func(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error {
			created = hold
			assert.Equal(t, 1, capacity)
			return nil
		},
	}
	invalidated := false
	cache := &MockAvailabilityCache{
		InvalidateFunc: func(ctx context.Context, resourceID string) error {
			invalidated = true
			return nil
		},
	}
	published := false
	publisher := &MockEventPublisher{
		PublishHoldPlacedFunc: func(ctx context.Context, hold *domain.Hold) error {
			published = true
			return nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, cache, publisher)
	resp, err := svc.PlaceHold(ctx, "room-1", "owner-a", &dto.HoldRequest{Start: at(10, 0), End: at(11, 0)})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, created.ID, resp.HoldID)
	assert.Equal(t, "room-1", resp.ResourceID)
	assert.Equal(t, "owner-a", resp.OwnerID)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	assert.True(t, invalidated)
	assert.True(t, published)
}

func TestPlaceHold_InvalidInterval(t *testing.T) {
	ctx := context.Background()

	storeCalled := false
	store := &MockReservationStore{
		CreateHoldFunc: func(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error {
			storeCalled = true
			return nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	_, err := svc.PlaceHold(ctx, "room-1", "owner-a", &dto.HoldRequest{Start: at(11, 0), End: at(10, 0)})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	assert.True(t, domain.IsValidationError(err))
	assert.False(t, storeCalled)
}

func TestPlaceHold_ResourceNotFound(t *testing.T) {
	ctx := context.Background()

	resources := &MockResourceStore{
		GetResourceFunc: func(ctx context.Context, resourceID string) (*domain.Resource, error) {
			return nil, domain.ErrResourceNotFound
		},
	}

	svc := newTestService(&MockReservationStore{}, resources, nil, nil)
	_, err := svc.PlaceHold(ctx, "missing", "owner-a", &dto.HoldRequest{Start: at(10, 0), End: at(11, 0)})

	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}

func TestPlaceHold_CapacityExceeded(t *testing.T) {
	ctx := context.Background()

	store := &MockReservationStore{
		CreateHoldFunc: func(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error {
			return domain.ErrCapacityExceeded
		},
	}
	invalidated := false
	cache := &MockAvailabilityCache{
		InvalidateFunc: func(ctx context.Context, resourceID string) error {
			invalidated = true
			return nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, cache, nil)
	_, err := svc.PlaceHold(ctx, "room-1", "owner-a", &dto.HoldRequest{Start: at(10, 0), End: at(11, 0)})

	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.True(t, domain.IsConflictError(err))
	assert.False(t, invalidated)
}

func TestConfirmHold_Success(t *testing.T) {
	ctx := context.Background()
	holdID := uuid.New().String()

	hold := &domain.Hold{
		ID:         holdID,
		ResourceID: "room-1",
		OwnerID:    "owner-a",
		Interval:   domain.Interval{Start: at(10, 0), End: at(11, 0)},
		CreatedAt:  at(9, 0),
		ExpiresAt:  at(9, 10),
	}
	store := &MockReservationStore{
		GetHoldFunc: func(ctx context.Context, id string) (*domain.Hold, error) {
			return hold, nil
		},
		PromoteHoldFunc: func(ctx context.Context, id, reservationID string, capacity int, now time.Time) (*domain.Reservation, error) {
			return &domain.Reservation{
				ID:          reservationID,
				ResourceID:  hold.ResourceID,
				OwnerID:     hold.OwnerID,
				HoldID:      id,
				Interval:    hold.Interval,
				Status:      domain.ReservationStatusConfirmed,
				Version:     1,
				ConfirmedAt: now,
			}, nil
		},
	}
	confirmed := false
	publisher := &MockEventPublisher{
		PublishReservationConfirmedFunc: func(ctx context.Context, reservation *domain.Reservation) error {
			confirmed = true
			return nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, publisher)
	resp, err := svc.ConfirmHold(ctx, holdID, "owner-a")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.ReservationID)
	assert.Equal(t, int64(1), resp.Version)
	assert.Equal(t, "confirmed", resp.Status)
	assert.True(t, confirmed)
}

func TestConfirmHold_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	holdID := uuid.New().String()
	existing := &domain.Reservation{
		ID:         uuid.New().String(),
		ResourceID: "room-1",
		OwnerID:    "owner-a",
		HoldID:     holdID,
		Status:     domain.ReservationStatusConfirmed,
		Version:    1,
	}

	store := &MockReservationStore{
		GetHoldFunc: func(ctx context.Context, id string) (*domain.Hold, error) {
			return nil, domain.ErrHoldNotFound
		},
		GetReservationByHoldIDFunc: func(ctx context.Context, id string) (*domain.Reservation, error) {
			assert.Equal(t, holdID, id)
			return existing, nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	resp, err := svc.ConfirmHold(ctx, holdID, "owner-a")

	require.NoError(t, err)
	assert.Equal(t, existing.ID, resp.ReservationID)
	assert.Equal(t, existing.Version, resp.Version)
}

func TestConfirmHold_Expired(t *testing.T) {
	ctx := context.Background()
	holdID := uuid.New().String()

	store := &MockReservationStore{
		GetHoldFunc: func(ctx context.Context, id string) (*domain.Hold, error) {
			return &domain.Hold{ID: holdID, ResourceID: "room-1", OwnerID: "owner-a"}, nil
		},
		PromoteHoldFunc: func(ctx context.Context, id, reservationID string, capacity int, now time.Time) (*domain.Reservation, error) {
			return nil, domain.ErrHoldExpired
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	_, err := svc.ConfirmHold(ctx, holdID, "owner-a")

	assert.ErrorIs(t, err, domain.ErrHoldExpired)
	assert.True(t, domain.IsExpiredError(err))
}

func TestConfirmHold_NotOwner(t *testing.T) {
	ctx := context.Background()
	holdID := uuid.New().String()

	store := &MockReservationStore{
		GetHoldFunc: func(ctx context.Context, id string) (*domain.Hold, error) {
			return &domain.Hold{ID: holdID, ResourceID: "room-1", OwnerID: "owner-a"}, nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	_, err := svc.ConfirmHold(ctx, holdID, "owner-b")

	assert.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestReleaseHold_Success(t *testing.T) {
	ctx := context.Background()
	holdID := uuid.New().String()

	store := &MockReservationStore{
		ReleaseHoldFunc: func(ctx context.Context, id, ownerID string) (*domain.Hold, error) {
			return &domain.Hold{ID: id, ResourceID: "room-1", OwnerID: ownerID}, nil
		},
	}
	released := false
	publisher := &MockEventPublisher{
		PublishHoldReleasedFunc: func(ctx context.Context, hold *domain.Hold) error {
			released = true
			return nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, publisher)
	resp, err := svc.ReleaseHold(ctx, holdID, "owner-a")

	require.NoError(t, err)
	assert.Equal(t, "released", resp.Status)
	assert.True(t, released)
}

func TestCancelReservation_Success(t *testing.T) {
	ctx := context.Background()
	reservationID := uuid.New().String()
	cancelledAt := at(12, 0)

	store := &MockReservationStore{
		GetReservationFunc: func(ctx context.Context, id string) (*domain.Reservation, error) {
			return &domain.Reservation{ID: id, ResourceID: "room-1", OwnerID: "owner-a", Status: domain.ReservationStatusConfirmed, Version: 1}, nil
		},
		CancelReservationFunc: func(ctx context.Context, id string, expectedVersion int64, now time.Time) (*domain.Reservation, error) {
			assert.Equal(t, int64(1), expectedVersion)
			return &domain.Reservation{
				ID:          id,
				ResourceID:  "room-1",
				OwnerID:     "owner-a",
				Status:      domain.ReservationStatusCancelled,
				Version:     2,
				CancelledAt: &cancelledAt,
			}, nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	resp, err := svc.CancelReservation(ctx, reservationID, "owner-a", &dto.CancelRequest{Version: 1})

	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)
	assert.Equal(t, int64(2), resp.Version)
	assert.Equal(t, cancelledAt, resp.CancelledAt)
}

func TestCancelReservation_VersionConflict(t *testing.T) {
	ctx := context.Background()
	reservationID := uuid.New().String()

	store := &MockReservationStore{
		GetReservationFunc: func(ctx context.Context, id string) (*domain.Reservation, error) {
			return &domain.Reservation{ID: id, OwnerID: "owner-a", Status: domain.ReservationStatusConfirmed, Version: 3}, nil
		},
		CancelReservationFunc: func(ctx context.Context, id string, expectedVersion int64, now time.Time) (*domain.Reservation, error) {
			return nil, domain.ErrVersionConflict
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	_, err := svc.CancelReservation(ctx, reservationID, "owner-a", &dto.CancelRequest{Version: 1})

	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.True(t, domain.IsConflictError(err))
}

func TestCancelReservation_AlreadyCancelledIsNoOp(t *testing.T) {
	ctx := context.Background()
	reservationID := uuid.New().String()
	cancelledAt := at(12, 0)
	cancelled := &domain.Reservation{
		ID:          reservationID,
		OwnerID:     "owner-a",
		Status:      domain.ReservationStatusCancelled,
		Version:     2,
		CancelledAt: &cancelledAt,
	}

	store := &MockReservationStore{
		GetReservationFunc: func(ctx context.Context, id string) (*domain.Reservation, error) {
			return cancelled, nil
		},
		CancelReservationFunc: func(ctx context.Context, id string, expectedVersion int64, now time.Time) (*domain.Reservation, error) {
			return nil, domain.ErrAlreadyCancelled
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	resp, err := svc.CancelReservation(ctx, reservationID, "owner-a", &dto.CancelRequest{Version: 2})

	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)
	assert.Equal(t, int64(2), resp.Version)
}

func TestCancelReservation_NotOwner(t *testing.T) {
	ctx := context.Background()

	store := &MockReservationStore{
		GetReservationFunc: func(ctx context.Context, id string) (*domain.Reservation, error) {
			return &domain.Reservation{ID: id, OwnerID: "owner-a", Status: domain.ReservationStatusConfirmed, Version: 1}, nil
		},
		CancelReservationFunc: func(ctx context.Context, id string, expectedVersion int64, now time.Time) (*domain.Reservation, error) {
			t.Fatal("cancel must not reach the store for a foreign owner")
			return nil, nil
		},
	}

	svc := newTestService(store, &MockResourceStore{}, nil, nil)
	_, err := svc.CancelReservation(ctx, uuid.New().String(), "owner-b", &dto.CancelRequest{Version: 1})

	assert.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestGetReservation_NotFound(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&MockReservationStore{}, &MockResourceStore{}, nil, nil)
	_, err := svc.GetReservation(ctx, uuid.New().String(), "owner-a")

	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
	assert.True(t, domain.IsNotFoundError(err))
}

func TestUpdateCapacity_InUse(t *testing.T) {
	ctx := context.Background()

	resources := &MockResourceStore{
		UpdateCapacityFunc: func(ctx context.Context, resourceID string, capacity int, now time.Time) (*domain.Resource, error) {
			return nil, domain.ErrCapacityInUse
		},
	}

	svc := newTestService(&MockReservationStore{}, resources, nil, nil)
	_, err := svc.UpdateCapacity(ctx, "room-1", &dto.UpdateCapacityRequest{Capacity: 1})

	assert.ErrorIs(t, err, domain.ErrCapacityInUse)
}

// Full lifecycle against the real in-memory store: hold, conflicting hold,
// confirm, availability with a booked hole, cancel, availability restored.
func TestLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()

	store := repository.NewMemoryStore()
	resource := &domain.Resource{ID: uuid.New().String(), Name: "studio", Capacity: 1}
	require.NoError(t, store.CreateResource(ctx, resource))

	svc := newTestService(store, store, nil, nil)
	availSvc := NewAvailabilityService(store, store, nil, widePolicy)

	// Hold A wins [10:00, 11:00).
	holdA, err := svc.PlaceHold(ctx, resource.ID, "owner-a", &dto.HoldRequest{Start: at(10, 0), End: at(11, 0)})
	require.NoError(t, err)

	// Hold B overlaps and must lose.
	_, err = svc.PlaceHold(ctx, resource.ID, "owner-b", &dto.HoldRequest{Start: at(10, 30), End: at(11, 30)})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	confirmed, err := svc.ConfirmHold(ctx, holdA.HoldID, "owner-a")
	require.NoError(t, err)
	require.Equal(t, int64(1), confirmed.Version)

	// Confirm is idempotent.
	replay, err := svc.ConfirmHold(ctx, holdA.HoldID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, confirmed.ReservationID, replay.ReservationID)

	avail, err := availSvc.GetAvailability(ctx, resource.ID, at(9, 0), at(12, 0))
	require.NoError(t, err)
	require.Len(t, avail.Windows, 2)
	assert.Equal(t, at(9, 0), avail.Windows[0].Start)
	assert.Equal(t, at(10, 0), avail.Windows[0].End)
	assert.Equal(t, at(11, 0), avail.Windows[1].Start)
	assert.Equal(t, at(12, 0), avail.Windows[1].End)

	cancelledResp, err := svc.CancelReservation(ctx, confirmed.ReservationID, "owner-a", &dto.CancelRequest{Version: confirmed.Version})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelledResp.Status)

	avail, err = availSvc.GetAvailability(ctx, resource.ID, at(9, 0), at(12, 0))
	require.NoError(t, err)
	require.Len(t, avail.Windows, 1)
	assert.Equal(t, at(9, 0), avail.Windows[0].Start)
	assert.Equal(t, at(12, 0), avail.Windows[0].End)
}

func TestAvailability_CacheHit(t *testing.T) {
	ctx := context.Background()

	cachedWindows := []domain.Interval{{Start: at(9, 0), End: at(12, 0)}}
	listCalled := false
	store := &MockReservationStore{
		ListActiveFunc: func(ctx context.Context, resourceID string, window domain.Interval, now time.Time) (*repository.ActiveSet, error) {
			listCalled = true
			return &repository.ActiveSet{}, nil
		},
	}
	cache := &MockAvailabilityCache{
		GetFunc: func(ctx context.Context, resourceID string, query domain.Interval) ([]domain.Interval, bool, error) {
			return cachedWindows, true, nil
		},
	}

	svc := NewAvailabilityService(store, &MockResourceStore{}, cache, widePolicy)
	resp, err := svc.GetAvailability(ctx, "room-1", at(9, 0), at(12, 0))

	require.NoError(t, err)
	assert.True(t, resp.Cached)
	require.Len(t, resp.Windows, 1)
	assert.False(t, listCalled)
}

func TestAvailability_CacheErrorFallsThrough(t *testing.T) {
	ctx := context.Background()

	store := &MockReservationStore{
		ListActiveFunc: func(ctx context.Context, resourceID string, window domain.Interval, now time.Time) (*repository.ActiveSet, error) {
			return &repository.ActiveSet{}, nil
		},
	}
	cache := &MockAvailabilityCache{
		GetFunc: func(ctx context.Context, resourceID string, query domain.Interval) ([]domain.Interval, bool, error) {
			return nil, false, errors.New("redis down")
		},
	}

	svc := NewAvailabilityService(store, &MockResourceStore{}, cache, widePolicy)
	resp, err := svc.GetAvailability(ctx, "room-1", at(9, 0), at(12, 0))

	require.NoError(t, err)
	assert.False(t, resp.Cached)
	require.Len(t, resp.Windows, 1)
}
