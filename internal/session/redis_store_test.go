package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-url"); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestCreateAndGet(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	token, err := store.Create(ctx, "user-123", "Olive")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if token == "" {
		t.Fatal("Create returned empty token")
	}

	rec, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.UserID != "user-123" {
		t.Errorf("expected user ID user-123, got %s", rec.UserID)
	}
	if rec.DisplayName != "Olive" {
		t.Errorf("expected display name Olive, got %s", rec.DisplayName)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreateMintsDistinctTokens(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	t1, _ := store.Create(ctx, "user-123", "Olive")
	t2, _ := store.Create(ctx, "user-123", "Olive")
	if t1 == t2 {
		t.Fatal("two sessions for the same user share a token")
	}
}

func TestGetUnknownToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, err := store.Get(context.Background(), "no-such-token")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetExpiredToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	token, err := store.Create(ctx, "user-123", "Olive")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	s.FastForward(DefaultTTL + time.Minute)

	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	token, err := store.Create(ctx, "user-123", "Olive")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("Delete of revoked token failed: %v", err)
	}
}
