package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aikokik/bookabl-api/internal/metrics"
	"github.com/aikokik/bookabl-api/internal/repository"
	"github.com/aikokik/bookabl-api/internal/service"
	"github.com/aikokik/bookabl-api/pkg/logger"
)

// SweepWorkerConfig contains configuration for the sweep worker
type SweepWorkerConfig struct {
	// SweepInterval is the interval between scans for expired holds
	SweepInterval time.Duration
	// BatchSize is the maximum number of holds removed per scan
	BatchSize int
}

// DefaultSweepWorkerConfig returns default configuration
func DefaultSweepWorkerConfig() *SweepWorkerConfig {
	return &SweepWorkerConfig{
		SweepInterval: 30 * time.Second,
		BatchSize:     500,
	}
}

// SweepWorker removes holds past their expiry so they stop counting toward
// capacity. Expiry is already enforced at read time; the sweep reclaims
// storage and emits the expiry events.
type SweepWorker struct {
	store     repository.ReservationStore
	cache     repository.AvailabilityCache
	publisher service.EventPublisher
	config    *SweepWorkerConfig
	log       *zap.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool

	totalExpired   int64
	lastSweepTime  time.Time
	lastSweptCount int
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(
	store repository.ReservationStore,
	cache repository.AvailabilityCache,
	publisher service.EventPublisher,
	config *SweepWorkerConfig,
) *SweepWorker {
	if config == nil {
		config = DefaultSweepWorkerConfig()
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepWorkerConfig().SweepInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSweepWorkerConfig().BatchSize
	}
	if cache == nil {
		cache = repository.NewNoOpAvailabilityCache()
	}
	if publisher == nil {
		publisher = service.NewNoOpEventPublisher()
	}

	return &SweepWorker{
		store:     store,
		cache:     cache,
		publisher: publisher,
		config:    config,
		log:       logger.Get(),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the sweep worker
func (w *SweepWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sweep worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("starting sweep worker",
		zap.Duration("interval", w.config.SweepInterval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the sweep worker and waits for the current scan to finish
func (w *SweepWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("stopping sweep worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("sweep worker stopped")
}

func (w *SweepWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass, draining full batches until the store has no more
// expired holds. Safe to call concurrently from many workers; the store
// guarantees each hold is removed exactly once.
func (w *SweepWorker) Sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastSweepTime = time.Now().UTC()
	w.mu.Unlock()

	swept := 0
	for {
		expired, err := w.store.SweepExpired(ctx, time.Now().UTC(), w.config.BatchSize)
		if err != nil {
			w.log.Error("failed to sweep expired holds", zap.Error(err))
			break
		}
		if len(expired) == 0 {
			break
		}

		touched := make(map[string]struct{})
		for _, hold := range expired {
			touched[hold.ResourceID] = struct{}{}
			if err := w.publisher.PublishHoldExpired(ctx, hold); err != nil {
				w.log.Warn("failed to publish hold expired event",
					zap.String("hold_id", hold.ID), zap.Error(err))
			}
		}
		for resourceID := range touched {
			if err := w.cache.Invalidate(ctx, resourceID); err != nil {
				w.log.Warn("failed to invalidate availability cache",
					zap.String("resource_id", resourceID), zap.Error(err))
			}
		}

		metrics.RecordExpirations(ctx, int64(len(expired)))
		swept += len(expired)

		if len(expired) < w.config.BatchSize {
			break
		}
	}

	w.mu.Lock()
	w.totalExpired += int64(swept)
	w.lastSweptCount = swept
	w.mu.Unlock()

	if swept > 0 {
		w.log.Info("swept expired holds", zap.Int("count", swept))
	}
}

// Stats returns worker statistics
func (w *SweepWorker) Stats() *SweepWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &SweepWorkerStats{
		IsRunning:      w.running,
		TotalExpired:   w.totalExpired,
		LastSweepTime:  w.lastSweepTime,
		LastSweptCount: w.lastSweptCount,
	}
}

// SweepWorkerStats contains worker statistics
type SweepWorkerStats struct {
	IsRunning      bool      `json:"is_running"`
	TotalExpired   int64     `json:"total_expired"`
	LastSweepTime  time.Time `json:"last_sweep_time"`
	LastSweptCount int       `json:"last_swept_count"`
}
