package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aikokik/bookabl-api/internal/availability"
	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

const resourceColumns = `id, name, capacity, created_at, updated_at`

func scanResource(row pgx.Row) (*domain.Resource, error) {
	r := &domain.Resource{}
	if err := row.Scan(&r.ID, &r.Name, &r.Capacity, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

// GetResource returns a catalog entry.
func (s *PostgresStore) GetResource(ctx context.Context, resourceID string) (*domain.Resource, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.resource.get")
	defer span.End()

	span.SetAttributes(attribute.String("resource_id", resourceID))

	r, err := scanResource(s.pool.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, resourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrResourceNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return r, nil
}

// ListResources pages through the catalog ordered by ID.
func (s *PostgresStore) ListResources(ctx context.Context, limit, offset int) ([]*domain.Resource, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.resource.list")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit), attribute.Int("offset", offset))

	rows, err := s.pool.Query(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []*domain.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read resources: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// CreateResource adds a catalog entry.
func (s *PostgresStore) CreateResource(ctx context.Context, resource *domain.Resource) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.resource.create")
	defer span.End()

	span.SetAttributes(attribute.String("resource_id", resource.ID))

	capacity := resource.EffectiveCapacity()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resources (id, name, capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, resource.ID, resource.Name, capacity, resource.CreatedAt, resource.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create resource: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateCapacity changes capacity under the resource lock, refusing shrinks
// that would put confirmed future reservations over the new limit.
func (s *PostgresStore) UpdateCapacity(ctx context.Context, resourceID string, capacity int, now time.Time) (*domain.Resource, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.resource.update_capacity")
	defer span.End()

	span.SetAttributes(
		attribute.String("resource_id", resourceID),
		attribute.Int("capacity", capacity),
	)

	if capacity < 1 {
		span.SetStatus(codes.Error, "invalid capacity")
		return nil, domain.ErrInvalidCapacity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockResource(ctx, tx, resourceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	current, err := scanResource(tx.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1 FOR UPDATE`, resourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrResourceNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read resource: %w", err)
	}

	if capacity < current.Capacity {
		rows, err := tx.Query(ctx, `
			SELECT start_at, end_at FROM reservations
			WHERE resource_id = $1 AND status = 'confirmed' AND end_at > $2
		`, resourceID, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to read confirmed reservations: %w", err)
		}
		var confirmed []domain.Interval
		var window domain.Interval
		for rows.Next() {
			var iv domain.Interval
			if err := rows.Scan(&iv.Start, &iv.End); err != nil {
				rows.Close()
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, fmt.Errorf("failed to scan reservation interval: %w", err)
			}
			confirmed = append(confirmed, iv)
			if window.IsZero() || iv.Start.Before(window.Start) {
				window.Start = iv.Start
			}
			if iv.End.After(window.End) {
				window.End = iv.End
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to read reservation intervals: %w", err)
		}

		if len(confirmed) > 0 && availability.PeakOccupancy(confirmed, window) > capacity {
			span.SetStatus(codes.Error, "capacity in use")
			return nil, domain.ErrCapacityInUse
		}
	}

	updated, err := scanResource(tx.QueryRow(ctx, `
		UPDATE resources SET capacity = $2, updated_at = $3 WHERE id = $1
		RETURNING `+resourceColumns+`
	`, resourceID, capacity, now))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to update capacity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit capacity update: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return updated, nil
}
