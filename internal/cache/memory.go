package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/models"
)

type memoryEntry struct {
	result    *models.ScoreResult
	expiresAt time.Time
}

// MemoryStore keeps score results in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

// NewMemoryStore initializes an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*models.ScoreResult, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.result.Clone(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, result *models.ScoreResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{result: result.Clone(), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Purge(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var removed int64
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
