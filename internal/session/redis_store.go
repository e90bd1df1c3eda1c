// Package session stores server-side login sessions keyed by the
// opaque token carried in the browser cookie.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a token is unknown or has expired.
var ErrNotFound = errors.New("session: not found")

// DefaultTTL is how long a session lives without being recreated.
const DefaultTTL = 7 * 24 * time.Hour

// Record is the data stored for each session token.
type Record struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisStore keeps session records in Redis under an opaque token.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
		ttl:    DefaultTTL,
	}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// Create mints a fresh opaque token for the user and stores the record
// with the store's TTL.
func (s *RedisStore) Create(ctx context.Context, userID, displayName string) (string, error) {
	rec := Record{
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	token := uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), jsonData, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return token, nil
}

// Get resolves a token to its session record.
func (s *RedisStore) Get(ctx context.Context, token string) (Record, error) {
	jsonData, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(jsonData), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return rec, nil
}

// Delete revokes a token. Deleting an unknown token is not an error.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
