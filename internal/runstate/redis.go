package runstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cancelKeyPrefix = "lecture:cancel:"
	runKeyPrefix    = "lecture:run:"
)

// Redis is a Registry shared by every API and worker instance.
type Redis struct {
	client    *redis.Client
	cancelTTL time.Duration
	runTTL    time.Duration
}

// NewRedis creates a Redis-backed registry. Zero TTLs fall back to the defaults.
func NewRedis(client *redis.Client, cancelTTL, runTTL time.Duration) *Redis {
	if cancelTTL <= 0 {
		cancelTTL = DefaultCancelTTL
	}
	if runTTL <= 0 {
		runTTL = DefaultRunTTL
	}
	return &Redis{client: client, cancelTTL: cancelTTL, runTTL: runTTL}
}

func cancelKey(id uuid.UUID) string { return cancelKeyPrefix + id.String() }
func runKey(id uuid.UUID) string    { return runKeyPrefix + id.String() }

func (r *Redis) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Set(ctx, cancelKey(id), "1", r.cancelTTL).Err(); err != nil {
		return fmt.Errorf("set cancel flag: %w", err)
	}
	return nil
}

func (r *Redis) Cancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.client.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Clear(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, cancelKey(id)).Err(); err != nil {
		return fmt.Errorf("clear cancel flag: %w", err)
	}
	return nil
}

func (r *Redis) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := r.client.SetNX(ctx, runKey(id), time.Now().UTC().Format(time.RFC3339), r.runTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, runKey(id)).Err(); err != nil {
		return fmt.Errorf("release run: %w", err)
	}
	return nil
}
