package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	attempt   CheckoutAttempt
	expiresAt time.Time
}

// MemoryCheckoutStore keeps attempts in process. It is only correct for a
// single instance deployment.
type MemoryCheckoutStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryCheckoutStore(ttl time.Duration) *MemoryCheckoutStore {
	return &MemoryCheckoutStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryCheckoutStore) Save(_ context.Context, attempt CheckoutAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	s.entries[attempt.Reference] = memoryEntry{attempt: attempt, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryCheckoutStore) Get(_ context.Context, reference string) (*CheckoutAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[reference]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, reference)
		return nil, nil
	}
	attempt := entry.attempt
	return &attempt, nil
}

func (s *MemoryCheckoutStore) Delete(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, reference)
	return nil
}

// Len reports stored entries including expired ones not yet purged.
func (s *MemoryCheckoutStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryCheckoutStore) purgeLocked(now time.Time) {
	for ref, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, ref)
		}
	}
}
