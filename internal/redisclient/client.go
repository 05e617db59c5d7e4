package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lease.lua
var releaseLeaseLua string

//go:embed scripts/extend_lease.lua
var extendLeaseLua string

//go:embed scripts/rate_limit.lua
var rateLimitLua string

type Client struct {
	rdb             *redis.Client
	releaseScript   *redis.Script
	extendScript    *redis.Script
	rateLimitScript *redis.Script
}

// Lease is a held lock. Only the holder's token can release it.
type Lease struct {
	Key   string
	Token string
}

// RateLimitResult reports the state of a client's current window
type RateLimitResult struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetIn   time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:             rdb,
		releaseScript:   redis.NewScript(releaseLeaseLua),
		extendScript:    redis.NewScript(extendLeaseLua),
		rateLimitScript: redis.NewScript(rateLimitLua),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLease takes lock:{name} for ttl. Returns nil, nil when another holder has it.
func (c *Client) AcquireLease(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	lease := &Lease{
		Key:   fmt.Sprintf("lock:%s", name),
		Token: uuid.NewString(),
	}

	ok, err := c.rdb.SetNX(ctx, lease.Key, lease.Token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

// ReleaseLease deletes the lease if it is still held by this token.
// Returns false when it expired or was taken over.
func (c *Client) ReleaseLease(ctx context.Context, lease *Lease) (bool, error) {
	if lease == nil {
		return false, nil
	}

	result, err := c.releaseScript.Run(ctx, c.rdb, []string{lease.Key}, lease.Token).Result()
	if err != nil {
		return false, fmt.Errorf("release lease script failed: %w", err)
	}

	n, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return n == 1, nil
}

// ExtendLease resets the lease's ttl if it is still held by this token.
// Returns false when it expired or was taken over.
func (c *Client) ExtendLease(ctx context.Context, lease *Lease, ttl time.Duration) (bool, error) {
	if lease == nil {
		return false, nil
	}

	result, err := c.extendScript.Run(ctx, c.rdb, []string{lease.Key}, lease.Token, ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("extend lease script failed: %w", err)
	}

	n, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return n == 1, nil
}

// AllowRequest counts one request for key in a fixed window of the given length
func (c *Client) AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 {
		return nil, errors.New("rate limit must be positive")
	}

	redisKey := fmt.Sprintf("ratelimit:%s", key)
	result, err := c.rateLimitScript.Run(ctx, c.rdb, []string{redisKey}, window.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected script result type")
	}
	count, ok1 := values[0].(int64)
	ttl, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("unexpected script result type")
	}

	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   count <= int64(limit),
		Count:     count,
		Remaining: remaining,
		ResetIn:   time.Duration(ttl) * time.Millisecond,
	}, nil
}
