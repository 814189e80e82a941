package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

var (
	// Lifecycle counters
	HoldsCreated          *telemetry.Counter
	HoldsReleased         *telemetry.Counter
	HoldsExpired          *telemetry.Counter
	ReservationsConfirmed *telemetry.Counter
	ReservationsCancelled *telemetry.Counter
	ConflictsRejected     *telemetry.Counter

	// Error tracking
	ErrorsTotal *telemetry.Counter

	// Histograms
	HoldToConfirmDuration *telemetry.Histogram
	RequestDuration       *telemetry.Histogram

	// Gauges
	ActiveHolds *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all booking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	HoldsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_holds_created_total",
		Description: "Total number of holds placed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldsReleased, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_holds_released_total",
		Description: "Total number of holds released by their owner",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_holds_expired_total",
		Description: "Total number of holds swept after expiry",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_reservations_confirmed_total",
		Description: "Total number of reservations confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_reservations_cancelled_total",
		Description: "Total number of reservations cancelled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ConflictsRejected, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_conflicts_rejected_total",
		Description: "Total number of hold attempts rejected for capacity",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ErrorsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_errors_total",
		Description: "Total number of errors by type",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldToConfirmDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_hold_to_confirm_duration_seconds",
		Description: "Duration from hold placement to confirmation",
		Unit:        "s",
	}, []float64{1, 5, 10, 30, 60, 120, 300, 600})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	ActiveHolds, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booking_active_holds",
		Description: "Current number of unexpired holds",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordHold records a placed hold
func RecordHold(ctx context.Context, resourceID string) {
	if HoldsCreated != nil {
		HoldsCreated.Inc(ctx, attribute.String("resource_id", resourceID))
	}
	if ActiveHolds != nil {
		ActiveHolds.Inc(ctx)
	}
}

// RecordConfirmation records a confirmed reservation and the time the hold
// spent pending
func RecordConfirmation(ctx context.Context, resourceID string, holdAgeSeconds float64) {
	if ReservationsConfirmed != nil {
		ReservationsConfirmed.Inc(ctx, attribute.String("resource_id", resourceID))
	}
	if HoldToConfirmDuration != nil {
		HoldToConfirmDuration.Record(ctx, holdAgeSeconds, attribute.String("resource_id", resourceID))
	}
	if ActiveHolds != nil {
		ActiveHolds.Dec(ctx)
	}
}

// RecordCancellation records a cancelled reservation
func RecordCancellation(ctx context.Context, resourceID string) {
	if ReservationsCancelled != nil {
		ReservationsCancelled.Inc(ctx, attribute.String("resource_id", resourceID))
	}
}

// RecordRelease records a hold released by its owner
func RecordRelease(ctx context.Context, resourceID string) {
	if HoldsReleased != nil {
		HoldsReleased.Inc(ctx, attribute.String("resource_id", resourceID))
	}
	if ActiveHolds != nil {
		ActiveHolds.Dec(ctx)
	}
}

// RecordExpirations records holds removed by a sweep
func RecordExpirations(ctx context.Context, count int64) {
	if count == 0 {
		return
	}
	if HoldsExpired != nil {
		HoldsExpired.Add(ctx, count)
	}
	if ActiveHolds != nil {
		ActiveHolds.Add(ctx, -count)
	}
}

// RecordConflict records a hold rejected for capacity
func RecordConflict(ctx context.Context, resourceID string) {
	if ConflictsRejected != nil {
		ConflictsRejected.Inc(ctx, attribute.String("resource_id", resourceID))
	}
}

// RecordError records an error by type and operation
func RecordError(ctx context.Context, errorType, operation string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("error_type", errorType),
			attribute.String("operation", operation),
		)
	}
}

// RecordRequestDuration records HTTP request duration
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds, attribute.String("operation", operation))
	}
}
