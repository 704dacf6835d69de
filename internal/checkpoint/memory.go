package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// MemoryStore keeps the checkpoint in process memory for tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	cp    *crawler.Checkpoint
	saves int
	// FailSave, when set, is returned by Save instead of persisting.
	FailSave error
}

// NewMemoryStore returns an empty store; Load fails until the first Save.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith seeds the store with cp.
func NewMemoryStoreWith(cp crawler.Checkpoint) *MemoryStore {
	return &MemoryStore{cp: &cp}
}

// Load implements crawler.CheckpointStore.
func (s *MemoryStore) Load(context.Context) (crawler.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cp == nil {
		return crawler.Checkpoint{}, fmt.Errorf("%w: no checkpoint saved", crawler.ErrConfig)
	}
	return *s.cp, nil
}

// Save implements crawler.CheckpointStore.
func (s *MemoryStore) Save(_ context.Context, cp crawler.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	if err := Validate(cp); err != nil {
		return err
	}
	s.cp = &cp
	s.saves++
	return nil
}

// Saves reports how many checkpoints were persisted.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
