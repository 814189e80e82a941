package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aikokik/bookabl-api/internal/domain"
	pkgredis "github.com/aikokik/bookabl-api/pkg/redis"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

//go:embed scripts/invalidate_resource.lua
var invalidateResourceScript string

const scriptInvalidateResource = "invalidate_resource"

// RedisAvailabilityCache caches computed free windows in Redis. Entries are
// keyed by resource and query range and expire on a short TTL; every write
// to a resource invalidates all of its entries atomically through a Lua
// script so availability reads never serve windows from before the write.
type RedisAvailabilityCache struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisAvailabilityCache creates a new RedisAvailabilityCache.
func NewRedisAvailabilityCache(client *pkgredis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

// LoadScripts loads the invalidation script into Redis.
func (c *RedisAvailabilityCache) LoadScripts(ctx context.Context) error {
	if _, err := c.client.LoadScript(ctx, scriptInvalidateResource, invalidateResourceScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptInvalidateResource, err)
	}
	return nil
}

func cacheKey(resourceID string, query domain.Interval) string {
	return fmt.Sprintf("availability:%s:%d-%d", resourceID, query.Start.Unix(), query.End.Unix())
}

// Get returns the cached windows for the exact query range, if present.
func (c *RedisAvailabilityCache) Get(ctx context.Context, resourceID string, query domain.Interval) ([]domain.Interval, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability_cache.get")
	defer span.End()

	span.SetAttributes(attribute.String("resource_id", resourceID))

	raw, err := c.client.Get(ctx, cacheKey(resourceID, query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache_hit", false))
			span.SetStatus(codes.Ok, "")
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("failed to read availability cache: %w", err)
	}

	var windows []domain.Interval
	if err := json.Unmarshal(raw, &windows); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("cache_hit", false))
		span.SetStatus(codes.Ok, "")
		return nil, false, nil
	}

	span.SetAttributes(attribute.Bool("cache_hit", true), attribute.Int("windows", len(windows)))
	span.SetStatus(codes.Ok, "")
	return windows, true, nil
}

// Set stores the windows for the query range with the configured TTL.
func (c *RedisAvailabilityCache) Set(ctx context.Context, resourceID string, query domain.Interval, windows []domain.Interval) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability_cache.set")
	defer span.End()

	span.SetAttributes(attribute.String("resource_id", resourceID), attribute.Int("windows", len(windows)))

	if windows == nil {
		windows = []domain.Interval{}
	}
	raw, err := json.Marshal(windows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to encode availability windows: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(resourceID, query), raw, c.ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write availability cache: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Invalidate drops every cached range for the resource.
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, resourceID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability_cache.invalidate")
	defer span.End()

	span.SetAttributes(attribute.String("resource_id", resourceID))

	pattern := fmt.Sprintf("availability:%s:*", resourceID)
	result := c.client.EvalWithFallback(ctx, scriptInvalidateResource, invalidateResourceScript, []string{pattern})
	if err := result.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to invalidate availability cache: %w", err)
	}

	removed, _ := result.Int64()
	span.SetAttributes(attribute.Int64("removed", removed))
	span.SetStatus(codes.Ok, "")
	return nil
}

// NoOpAvailabilityCache satisfies AvailabilityCache when Redis is not
// configured; every read is a miss.
type NoOpAvailabilityCache struct{}

// NewNoOpAvailabilityCache returns a cache that never stores anything.
func NewNoOpAvailabilityCache() *NoOpAvailabilityCache {
	return &NoOpAvailabilityCache{}
}

func (NoOpAvailabilityCache) Get(ctx context.Context, resourceID string, query domain.Interval) ([]domain.Interval, bool, error) {
	return nil, false, nil
}

func (NoOpAvailabilityCache) Set(ctx context.Context, resourceID string, query domain.Interval, windows []domain.Interval) error {
	return nil
}

func (NoOpAvailabilityCache) Invalidate(ctx context.Context, resourceID string) error {
	return nil
}
