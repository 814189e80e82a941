package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/repository"
)

type capturePublisher struct {
	mu      sync.Mutex
	expired []*domain.Hold
}

func (p *capturePublisher) PublishHoldPlaced(ctx context.Context, hold *domain.Hold) error {
	return nil
}

func (p *capturePublisher) PublishHoldReleased(ctx context.Context, hold *domain.Hold) error {
	return nil
}

func (p *capturePublisher) PublishHoldExpired(ctx context.Context, hold *domain.Hold) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, hold)
	return nil
}

func (p *capturePublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

func (p *capturePublisher) PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func seedHold(t *testing.T, store *repository.MemoryStore, resourceID string, start, expiresAt time.Time) *domain.Hold {
	t.Helper()
	hold := &domain.Hold{
		ID:         "hold-" + start.Format("150405") + "-" + expiresAt.Format("150405"),
		ResourceID: resourceID,
		OwnerID:    "owner-a",
		Interval:   domain.Interval{Start: start, End: start.Add(time.Hour)},
		CreatedAt:  start.Add(-time.Hour),
		ExpiresAt:  expiresAt,
	}
	if err := store.CreateHold(context.Background(), hold, 10, hold.CreatedAt); err != nil {
		t.Fatalf("failed to seed hold: %v", err)
	}
	return hold
}

func TestSweepWorker_RemovesOnlyExpiredHolds(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	if err := store.CreateResource(ctx, &domain.Resource{ID: "room-1", Name: "room", Capacity: 10}); err != nil {
		t.Fatalf("failed to create resource: %v", err)
	}

	expired := seedHold(t, store, "room-1", base, time.Now().UTC().Add(-time.Minute))
	live := seedHold(t, store, "room-1", base.Add(2*time.Hour), time.Now().UTC().Add(time.Hour))

	publisher := &capturePublisher{}
	worker := NewSweepWorker(store, nil, publisher, &SweepWorkerConfig{
		SweepInterval: time.Hour,
		BatchSize:     100,
	})

	worker.Sweep(ctx)

	if len(publisher.expired) != 1 {
		t.Fatalf("expected 1 expired event, got %d", len(publisher.expired))
	}
	if publisher.expired[0].ID != expired.ID {
		t.Errorf("expected hold %s expired, got %s", expired.ID, publisher.expired[0].ID)
	}

	if _, err := store.GetHold(ctx, expired.ID); err == nil {
		t.Error("expected expired hold to be removed")
	}
	if _, err := store.GetHold(ctx, live.ID); err != nil {
		t.Errorf("expected live hold to survive: %v", err)
	}

	stats := worker.Stats()
	if stats.TotalExpired != 1 {
		t.Errorf("expected TotalExpired=1, got %d", stats.TotalExpired)
	}
}

func TestSweepWorker_DrainsFullBatches(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	if err := store.CreateResource(ctx, &domain.Resource{ID: "room-1", Name: "room", Capacity: 100}); err != nil {
		t.Fatalf("failed to create resource: %v", err)
	}

	for i := 0; i < 5; i++ {
		seedHold(t, store, "room-1", base.Add(time.Duration(i)*2*time.Hour), time.Now().UTC().Add(-time.Minute))
	}

	publisher := &capturePublisher{}
	worker := NewSweepWorker(store, nil, publisher, &SweepWorkerConfig{
		SweepInterval: time.Hour,
		BatchSize:     2,
	})

	worker.Sweep(ctx)

	if len(publisher.expired) != 5 {
		t.Errorf("expected all 5 holds swept in one pass, got %d", len(publisher.expired))
	}
}

func TestSweepWorker_StartStop(t *testing.T) {
	store := repository.NewMemoryStore()
	worker := NewSweepWorker(store, nil, nil, nil)

	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if err := worker.Start(context.Background()); err == nil {
		t.Error("expected second start to fail")
	}

	worker.Stop()
	if worker.Stats().IsRunning {
		t.Error("expected worker to report stopped")
	}
}
