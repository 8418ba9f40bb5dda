package mfa

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tenantauth/backend/internal/mfa/domain"
)

func newTestRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisStore(client, 5*time.Minute)
}

func testChallenge(now time.Time) *domain.Challenge {
	return &domain.Challenge{
		CodeHash:  HashCode("123456"),
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedAt: now,
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if got, err := s.Get(ctx, "u-1"); err != nil || got != nil {
		t.Fatalf("Get empty = (%+v, %v), want (nil, nil)", got, err)
	}

	ch := testChallenge(now)
	if err := s.Put(ctx, "u-1", ch, 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.CodeHash != ch.CodeHash {
		t.Fatalf("Get = %+v, want stored challenge", got)
	}

	if err := s.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := s.Get(ctx, "u-1"); got != nil {
		t.Error("challenge survived Delete")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return base }

	if err := s.Put(ctx, "u-1", testChallenge(base), 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s.nowF = func() time.Time { return base.Add(6 * time.Minute) }
	if got, err := s.Get(ctx, "u-1"); err != nil || got != nil {
		t.Errorf("Get past TTL = (%+v, %v), want (nil, nil)", got, err)
	}
	if n, err := s.Increment(ctx, "u-1"); err != nil || n != 0 {
		t.Errorf("Increment past TTL = (%d, %v), want (0, nil)", n, err)
	}
}

func TestMemoryStore_IncrementCounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "u-1", testChallenge(time.Now().UTC()), 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for want := 1; want <= 6; want++ {
		n, err := s.Increment(ctx, "u-1")
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if n != want {
			t.Fatalf("Increment = %d, want %d", n, want)
		}
	}
}

func TestMemoryStore_PutOverwritesAttempts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Put(ctx, "u-1", testChallenge(time.Now().UTC()), 5*time.Minute)
	s.Increment(ctx, "u-1")
	s.Increment(ctx, "u-1")

	s.Put(ctx, "u-1", testChallenge(time.Now().UTC()), 5*time.Minute)
	if n, _ := s.Increment(ctx, "u-1"); n != 1 {
		t.Errorf("attempts after re-Put = %d, want 1", n)
	}
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	_, s := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if got, err := s.Get(ctx, "u-1"); err != nil || got != nil {
		t.Fatalf("Get empty = (%+v, %v), want (nil, nil)", got, err)
	}

	ch := testChallenge(now)
	if err := s.Put(ctx, "u-1", ch, 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.CodeHash != ch.CodeHash {
		t.Fatalf("Get = %+v, want stored challenge", got)
	}
	if !got.ExpiresAt.Equal(ch.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, ch.ExpiresAt)
	}

	if err := s.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := s.Get(ctx, "u-1"); got != nil {
		t.Error("challenge survived Delete")
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	mr, s := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "u-1", testChallenge(time.Now().UTC()), 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mr.FastForward(6 * time.Minute)
	if got, err := s.Get(ctx, "u-1"); err != nil || got != nil {
		t.Errorf("Get past TTL = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestRedisStore_IncrementAtomic(t *testing.T) {
	_, s := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "u-1", testChallenge(time.Now().UTC()), 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for want := 1; want <= 3; want++ {
		n, err := s.Increment(ctx, "u-1")
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if n != want {
			t.Fatalf("Increment = %d, want %d", n, want)
		}
	}

	// Re-issuing the challenge resets the counter.
	if err := s.Put(ctx, "u-1", testChallenge(time.Now().UTC()), 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n, _ := s.Increment(ctx, "u-1"); n != 1 {
		t.Errorf("attempts after re-Put = %d, want 1", n)
	}
}
