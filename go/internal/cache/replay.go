package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/redis/go-redis/v9"
)

// ReplayCache keeps each room's recent chat history in a Redis list so
// session replay does not hit Postgres on every connect. The list head is the
// newest message; entries are JSON-encoded models.Message.
type ReplayCache struct {
	client *redis.Client
	prefix string
	limit  int
	ttl    time.Duration
}

// Config holds configuration for the replay cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Limit    int
	TTL      time.Duration
}

// DefaultConfig returns default configuration for the replay cache.
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "studyhall",
		Limit:  50,
		TTL:    24 * time.Hour,
	}
}

// NewReplayCache connects to Redis and verifies the connection.
func NewReplayCache(ctx context.Context, config Config) (*ReplayCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if config.Limit <= 0 {
		config.Limit = 50
	}
	return &ReplayCache{
		client: client,
		prefix: config.Prefix,
		limit:  config.Limit,
		ttl:    config.TTL,
	}, nil
}

func (c *ReplayCache) key(roomID uuid.UUID) string {
	return fmt.Sprintf("%s:room:%s:messages", c.prefix, roomID)
}

// Recent returns up to limit cached messages for the room, newest first. The
// second return value reports whether the cache held anything for the room;
// a cold cache is not an error.
func (c *ReplayCache) Recent(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, bool, error) {
	if limit <= 0 || limit > c.limit {
		limit = c.limit
	}
	raw, err := c.client.LRange(ctx, c.key(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read replay cache: %w", err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	msgs := make([]models.Message, 0, len(raw))
	for _, entry := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, false, fmt.Errorf("failed to decode cached message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, true, nil
}

// Push prepends a freshly persisted message and trims the list to the
// configured limit.
func (c *ReplayCache) Push(ctx context.Context, roomID uuid.UUID, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	key := c.key(roomID)
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(c.limit-1))
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push to replay cache: %w", err)
	}
	return nil
}

// Prime replaces the room's cached history with msgs (newest first, as
// returned by the store).
func (c *ReplayCache) Prime(ctx context.Context, roomID uuid.UUID, msgs []models.Message) error {
	key := c.key(roomID)

	encoded := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		encoded = append(encoded, data)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(encoded) > 0 {
		// RPush in newest-first order keeps the newest message at the head.
		pipe.RPush(ctx, key, encoded...)
		pipe.LTrim(ctx, key, 0, int64(c.limit-1))
	}
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prime replay cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *ReplayCache) Close() error {
	return c.client.Close()
}
