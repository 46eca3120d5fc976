package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// idempotencyPending marks a key whose request is still in flight
const idempotencyPending = "PENDING"

// ErrIdempotencyInFlight is returned when another request holds the key
var ErrIdempotencyInFlight = errors.New("request with this idempotency key is in progress")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks connectivity
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

	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// NextProvisionalSequence returns the next local sequence value for a
// topic. Values are unique per topic but say nothing about ledger order.
func (c *Client) NextProvisionalSequence(ctx context.Context, topicID string) (int64, error) {
	v, err := c.rdb.Incr(ctx, fmt.Sprintf("provisional_seq:%s", topicID)).Result()
	if err != nil {
		return 0, fmt.Errorf("provisional sequence incr failed: %w", err)
	}
	return v, nil
}

// ReserveIdempotencyKey claims key for the duration of a request. It returns
// the stored response if the key already completed, or
// ErrIdempotencyInFlight if another request holds it.
func (c *Client) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	redisKey := fmt.Sprintf("idempotency:%s", key)

	acquired, err := c.rdb.SetNX(ctx, redisKey, idempotencyPending, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("idempotency reserve failed: %w", err)
	}
	if acquired {
		return nil, nil
	}

	val, err := c.rdb.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller proceed
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if string(val) == idempotencyPending {
		return nil, ErrIdempotencyInFlight
	}
	return val, nil
}

// CompleteIdempotencyKey stores the response for key
func (c *Client) CompleteIdempotencyKey(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), response, ttl).Err()
}

// ReleaseIdempotencyKey drops a reservation after a failed request so the
// caller may retry with the same key
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}
