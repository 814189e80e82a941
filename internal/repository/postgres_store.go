package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aikokik/bookabl-api/internal/availability"
	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

// PostgresStore implements ReservationStore and ResourceStore on PostgreSQL
// with pgxpool. Writes that touch one resource serialize through
// pg_advisory_xact_lock keyed by the resource ID, so overlapping claims on
// the same resource enter the capacity check one at a time while disjoint
// resources proceed in parallel.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const holdColumns = `id, resource_id, owner_id, start_at, end_at, created_at, expires_at`

const reservationColumns = `id, resource_id, owner_id, hold_id, start_at, end_at, status, version, created_at, confirmed_at, cancelled_at, updated_at`

// lockResource takes the per-resource advisory lock for the lifetime of tx.
func lockResource(ctx context.Context, tx pgx.Tx, resourceID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, resourceID); err != nil {
		return fmt.Errorf("failed to lock resource %s: %w", resourceID, err)
	}
	return nil
}

func scanHold(row pgx.Row) (*domain.Hold, error) {
	h := &domain.Hold{}
	err := row.Scan(&h.ID, &h.ResourceID, &h.OwnerID, &h.Interval.Start, &h.Interval.End, &h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	r := &domain.Reservation{}
	var holdID *string
	var cancelledAt *time.Time
	var status string
	err := row.Scan(&r.ID, &r.ResourceID, &r.OwnerID, &holdID, &r.Interval.Start, &r.Interval.End,
		&status, &r.Version, &r.CreatedAt, &r.ConfirmedAt, &cancelledAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = domain.ReservationStatus(status)
	if holdID != nil {
		r.HoldID = *holdID
	}
	r.CancelledAt = cancelledAt
	return r, nil
}

// queryActiveSet collects the active snapshot inside q (pool or tx).
func queryActiveSet(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, resourceID string, window domain.Interval, now time.Time) (*ActiveSet, error) {
	set := &ActiveSet{}

	rows, err := q.Query(ctx, `
		SELECT `+holdColumns+`
		FROM holds
		WHERE resource_id = $1 AND start_at < $3 AND end_at > $2 AND expires_at > $4
		ORDER BY start_at
	`, resourceID, window.Start, window.End, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active holds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		set.Holds = append(set.Holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read holds: %w", err)
	}

	resRows, err := q.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE resource_id = $1 AND start_at < $3 AND end_at > $2 AND status = 'confirmed'
		ORDER BY start_at
	`, resourceID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed reservations: %w", err)
	}
	defer resRows.Close()
	for resRows.Next() {
		r, err := scanReservation(resRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		set.Reservations = append(set.Reservations, r)
	}
	if err := resRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reservations: %w", err)
	}

	return set, nil
}

// ListActive returns a consistent snapshot of active records overlapping window.
func (s *PostgresStore) ListActive(ctx context.Context, resourceID string, window domain.Interval, now time.Time) (*ActiveSet, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.list_active")
	defer span.End()

	span.SetAttributes(attribute.String("resource_id", resourceID))

	// Repeatable read keeps the two queries on one snapshot; a hold being
	// deleted mid-promote is either fully visible or fully gone.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin snapshot read: %w", err)
	}
	defer tx.Rollback(ctx)

	set, err := queryActiveSet(ctx, tx, resourceID, window, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit snapshot read: %w", err)
	}

	span.SetAttributes(
		attribute.Int("active_holds", len(set.Holds)),
		attribute.Int("active_reservations", len(set.Reservations)),
	)
	span.SetStatus(codes.Ok, "")
	return set, nil
}

// CreateHold performs the atomic capacity-check-and-insert.
func (s *PostgresStore) CreateHold(ctx context.Context, hold *domain.Hold, capacity int, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.create_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", hold.ID),
		attribute.String("resource_id", hold.ResourceID),
		attribute.Int("capacity", capacity),
	)

	if err := hold.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockResource(ctx, tx, hold.ResourceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	active, err := queryActiveSet(ctx, tx, hold.ResourceID, hold.Interval, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	occupied := append(active.Intervals(), hold.Interval)
	if availability.PeakOccupancy(occupied, hold.Interval) > capacity {
		span.SetStatus(codes.Error, "capacity exceeded")
		return domain.ErrCapacityExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO holds (id, resource_id, owner_id, start_at, end_at, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, hold.ID, hold.ResourceID, hold.OwnerID, hold.Interval.Start, hold.Interval.End, hold.CreatedAt, hold.ExpiresAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert hold: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit hold: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetHold returns a hold by ID, expired or not.
func (s *PostgresStore) GetHold(ctx context.Context, holdID string) (*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.get_hold")
	defer span.End()

	span.SetAttributes(attribute.String("hold_id", holdID))

	h, err := scanHold(s.pool.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1`, holdID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrHoldNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return h, nil
}

// PromoteHold converts a live hold into a confirmed reservation.
func (s *PostgresStore) PromoteHold(ctx context.Context, holdID, reservationID string, capacity int, now time.Time) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.promote_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("reservation_id", reservationID),
		attribute.Int("capacity", capacity),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Resolve the resource before locking; the lock must precede validation.
	var resourceID string
	err = tx.QueryRow(ctx, `SELECT resource_id FROM holds WHERE id = $1`, holdID).Scan(&resourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrHoldNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to resolve hold resource: %w", err)
	}

	if err := lockResource(ctx, tx, resourceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Re-read under the lock; a concurrent sweep may have deleted the row.
	h, err := scanHold(tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1 FOR UPDATE`, holdID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrHoldNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to re-read hold: %w", err)
	}

	deleteHold := func() error {
		_, err := tx.Exec(ctx, `DELETE FROM holds WHERE id = $1`, holdID)
		if err != nil {
			return fmt.Errorf("failed to delete hold: %w", err)
		}
		return tx.Commit(ctx)
	}

	if h.IsExpiredAt(now) {
		if err := deleteHold(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.SetStatus(codes.Error, "hold expired")
		return nil, domain.ErrHoldExpired
	}

	// Capacity may have shrunk between hold and confirm; re-validate
	// against everything else that is active.
	active, err := queryActiveSet(ctx, tx, h.ResourceID, h.Interval, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	occupied := make([]domain.Interval, 0, len(active.Holds)+len(active.Reservations)+1)
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
		if err := deleteHold(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.SetStatus(codes.Error, "capacity exceeded")
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

	_, err = tx.Exec(ctx, `
		INSERT INTO reservations (id, resource_id, owner_id, hold_id, start_at, end_at, status, version, created_at, confirmed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, res.ID, res.ResourceID, res.OwnerID, res.HoldID, res.Interval.Start, res.Interval.End,
		res.Status.String(), res.Version, res.CreatedAt, res.ConfirmedAt, res.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM holds WHERE id = $1`, holdID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to delete promoted hold: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// ReleaseHold deletes an unconfirmed hold owned by ownerID.
func (s *PostgresStore) ReleaseHold(ctx context.Context, holdID, ownerID string) (*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.release_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("owner_id", ownerID),
	)

	h, err := scanHold(s.pool.QueryRow(ctx, `
		DELETE FROM holds WHERE id = $1 AND owner_id = $2
		RETURNING `+holdColumns+`
	`, holdID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing hold from someone else's hold.
			var exists bool
			if qErr := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM holds WHERE id = $1)`, holdID).Scan(&exists); qErr == nil && exists {
				span.SetStatus(codes.Error, "not owner")
				return nil, domain.ErrNotOwner
			}
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrHoldNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to release hold: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return h, nil
}

// GetReservation returns a reservation by ID.
func (s *PostgresStore) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.get_reservation")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	r, err := scanReservation(s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrReservationNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return r, nil
}

// GetReservationByHoldID returns the reservation a hold was promoted into.
func (s *PostgresStore) GetReservationByHoldID(ctx context.Context, holdID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.get_reservation_by_hold")
	defer span.End()

	span.SetAttributes(attribute.String("hold_id", holdID))

	r, err := scanReservation(s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE hold_id = $1`, holdID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrReservationNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation by hold: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return r, nil
}

// CancelReservation performs the optimistic-concurrency cancel in a single
// conditional update; no advisory lock is needed since cancelling only frees
// capacity.
func (s *PostgresStore) CancelReservation(ctx context.Context, reservationID string, expectedVersion int64, now time.Time) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.cancel_reservation")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.Int64("expected_version", expectedVersion),
	)

	r, err := scanReservation(s.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = 'cancelled', cancelled_at = $3, updated_at = $3, version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'confirmed'
		RETURNING `+reservationColumns+`
	`, reservationID, expectedVersion, now))
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	// The conditional update matched nothing: work out which failure it was.
	current, err := s.GetReservation(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, "not found")
		return nil, err
	}
	if current.IsCancelled() {
		span.SetStatus(codes.Error, "already cancelled")
		return nil, domain.ErrAlreadyCancelled
	}
	span.SetStatus(codes.Error, "version conflict")
	return nil, domain.ErrVersionConflict
}

// SweepExpired deletes up to limit holds past their expiry. SKIP LOCKED keeps
// concurrent sweepers from double-processing the same rows.
func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.store.sweep_expired")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	rows, err := s.pool.Query(ctx, `
		DELETE FROM holds
		WHERE id IN (
			SELECT id FROM holds
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+holdColumns+`
	`, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to sweep expired holds: %w", err)
	}
	defer rows.Close()

	var swept []*domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan swept hold: %w", err)
		}
		swept = append(swept, h)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read swept holds: %w", err)
	}

	span.SetAttributes(attribute.Int("swept", len(swept)))
	span.SetStatus(codes.Ok, "")
	return swept, nil
}
