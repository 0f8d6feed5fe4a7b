package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
)

// KeyPrefixSystem is the prefix for cached system keys
const KeyPrefixSystem = "extids:system:"

// SystemKey returns the Redis key for a system code
func SystemKey(code string) string {
	return KeyPrefixSystem + code
}

// Redis stores systems as JSON values with a TTL
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// ConnectOptions configures Dial
type ConnectOptions struct {
	Addr          string
	Password      string
	DB            int
	Timeout       time.Duration // total time allowed for connection attempts
	RetryInterval time.Duration // initial wait between attempts, doubles up to MaxWait
	MaxWait       time.Duration
}

// Dial connects to Redis, retrying with exponential backoff until opts.Timeout elapses
func Dial(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if opts.Timeout <= 0 || opts.RetryInterval <= 0 || opts.MaxWait <= 0 {
		return nil, fmt.Errorf("redis connect options must be positive: %+v", opts)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	log.Info("connecting to redis", logger.String("addr", opts.Addr), logger.Duration("timeout", opts.Timeout))
	wait := opts.RetryInterval
	for attempt := 1; ; attempt++ {
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Info("connected to redis", logger.String("addr", opts.Addr), logger.Int("attempts", attempt))
			return client, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = client.Close()
			return nil, fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
			log.Warn("redis connection failed, retrying",
				logger.String("addr", opts.Addr),
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
			wait *= 2
			if wait > opts.MaxWait {
				wait = opts.MaxWait
			}
		}
	}
}

func (r *Redis) Get(ctx context.Context, code string) (*models.ExternalSystem, error) {
	data, err := r.client.Get(ctx, SystemKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached system: %w", err)
	}

	var system models.ExternalSystem
	if err := json.Unmarshal(data, &system); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached system: %w", err)
	}
	return &system, nil
}

func (r *Redis) Set(ctx context.Context, system *models.ExternalSystem) error {
	data, err := json.Marshal(system)
	if err != nil {
		return fmt.Errorf("failed to marshal system: %w", err)
	}
	if err := r.client.Set(ctx, SystemKey(system.Code), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache system: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = SystemKey(code)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached systems: %w", err)
	}
	return nil
}

// Flush removes every cached system
func (r *Redis) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, KeyPrefixSystem+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}
