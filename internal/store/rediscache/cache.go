// Package rediscache keeps therapist catalog reads in redis. The data it
// caches changes only through administrative edits, so entries simply
// expire after the configured TTL.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"therabook/backend/internal/domain"
)

const keyPrefix = "therabook:"

// Source is the uncached catalog.
type Source interface {
	GetTherapist(ctx context.Context, id string) (domain.Therapist, error)
	ListAvailabilityWindows(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error)
	GetSessionType(ctx context.Context, id string) (domain.SessionType, error)
}

// Cache is a read-through decorator over Source. Redis failures are logged
// and the call falls through to Source; errors from Source are never cached.
type Cache struct {
	src Source
	rdb redis.UniversalClient
	ttl time.Duration
	log *slog.Logger
}

func New(src Source, rdb redis.UniversalClient, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{src: src, rdb: rdb, ttl: ttl, log: log.With(slog.String("component", "rediscache"))}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (c *Cache) GetTherapist(ctx context.Context, id string) (domain.Therapist, error) {
	return readThrough(ctx, c, keyPrefix+"therapist:"+id, func() (domain.Therapist, error) {
		return c.src.GetTherapist(ctx, id)
	})
}

func (c *Cache) ListAvailabilityWindows(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error) {
	key := keyPrefix + "windows:" + therapistID + ":" + string(modality)
	return readThrough(ctx, c, key, func() ([]domain.AvailabilityWindow, error) {
		return c.src.ListAvailabilityWindows(ctx, therapistID, modality)
	})
}

func (c *Cache) GetSessionType(ctx context.Context, id string) (domain.SessionType, error) {
	return readThrough(ctx, c, keyPrefix+"session_type:"+id, func() (domain.SessionType, error) {
		return c.src.GetSessionType(ctx, id)
	})
}

func readThrough[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	var out T
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, &out); jsonErr == nil {
			return out, nil
		}
		c.log.Warn("dropping undecodable cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("redis get failed", slog.String("key", key), slog.Any("err", err))
	}

	out, err = load()
	if err != nil {
		return out, err
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("redis set failed", slog.String("key", key), slog.Any("err", err))
	}
	return out, nil
}
