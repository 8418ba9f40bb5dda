package mfa

import (
	"context"
	"sync"
	"time"

	"tenantauth/backend/internal/mfa/domain"
)

// ChallengeStore holds at most one pending challenge per user, plus its
// attempt counter, with a shared expiry. Get returns (nil, nil) on a miss.
type ChallengeStore interface {
	Put(ctx context.Context, userID string, ch *domain.Challenge, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*domain.Challenge, error)
	// Increment bumps the attempt counter and returns the new value.
	// A missing challenge yields 0.
	Increment(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string) error
}

type memoryEntry struct {
	challenge domain.Challenge
	attempts  int
	expiresAt time.Time
}

// MemoryStore is a process-local ChallengeStore. Challenges issued on one
// instance are invisible to others; deployments running more than one
// instance should use the Redis store instead.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]*memoryEntry
	nowF func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]*memoryEntry{}, nowF: func() time.Time { return time.Now().UTC() }}
}

func (s *MemoryStore) Put(ctx context.Context, userID string, ch *domain.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = &memoryEntry{challenge: *ch, expiresAt: s.nowF().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[userID]
	if !ok {
		return nil, nil
	}
	if s.nowF().After(e.expiresAt) {
		delete(s.m, userID)
		return nil, nil
	}
	cp := e.challenge
	return &cp, nil
}

func (s *MemoryStore) Increment(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[userID]
	if !ok || s.nowF().After(e.expiresAt) {
		return 0, nil
	}
	e.attempts++
	return e.attempts, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}
