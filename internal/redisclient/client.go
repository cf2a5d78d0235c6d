package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkDeliverySeen records a delivery id for a consumer group inside the
// retention window. Returns true if this is the first sighting; false means
// the broker redelivered and the consumer should skip the event.
func (c *Client) MarkDeliverySeen(ctx context.Context, group, deliveryID string, retention time.Duration) (bool, error) {
	key := fmt.Sprintf("seen:%s:%s", group, deliveryID)
	first, err := c.rdb.SetNX(ctx, key, "1", retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery seen: %w", err)
	}
	return first, nil
}

// AcquireLock acquires a distributed lock, used so a single instance runs a
// scheduled sweep at a time
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// PublishPush publishes a push payload to a user's channel
func (c *Client) PublishPush(ctx context.Context, userID int64, payload []byte) error {
	return c.rdb.Publish(ctx, fmt.Sprintf("push:user:%d", userID), payload).Err()
}

// PublishBroadcast publishes a push payload to the broadcast channel
func (c *Client) PublishBroadcast(ctx context.Context, payload []byte) error {
	return c.rdb.Publish(ctx, "push:broadcast", payload).Err()
}
