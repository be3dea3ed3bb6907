// Package cache evicts cached content resources after a sync and announces
// the sync to the running site.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix  = "content:resource:"
	DefaultChannel = "content:sync"
)

// SyncEvent is published after a sync commits.
type SyncEvent struct {
	ModuleID string    `json:"moduleId"`
	Site     string    `json:"site,omitempty"`
	Inserted []string  `json:"inserted"`
	Updated  []string  `json:"updated"`
	Deleted  []string  `json:"deleted"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Touched lists every resource id the event mentions.
func (e SyncEvent) Touched() []string {
	ids := make([]string, 0, len(e.Inserted)+len(e.Updated)+len(e.Deleted))
	ids = append(ids, e.Inserted...)
	ids = append(ids, e.Updated...)
	ids = append(ids, e.Deleted...)
	if e.ModuleID != "" {
		ids = append(ids, e.ModuleID)
	}
	return ids
}

// RedisInvalidator drops cached resources and publishes sync events.
type RedisInvalidator struct {
	client  *redis.Client
	prefix  string
	channel string
}

// NewRedisInvalidator creates a client for redisURL. Connections are made
// lazily; call Ping to check the server is reachable.
func NewRedisInvalidator(redisURL string) (*RedisInvalidator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisInvalidatorWithClient(redis.NewClient(opts)), nil
}

// NewRedisInvalidatorWithClient wraps an existing Redis client.
func NewRedisInvalidatorWithClient(client *redis.Client) *RedisInvalidator {
	return &RedisInvalidator{
		client:  client,
		prefix:  DefaultPrefix,
		channel: DefaultChannel,
	}
}

func (s *RedisInvalidator) key(id string) string {
	return s.prefix + id
}

// Invalidate deletes the cache entries of ids and reports how many existed.
func (s *RedisInvalidator) Invalidate(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("invalidate resources: %w", err)
	}
	return n, nil
}

// Publish announces a finished sync.
func (s *RedisInvalidator) Publish(ctx context.Context, event SyncEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sync event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish sync event: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisInvalidator) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisInvalidator) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	return nil
}
