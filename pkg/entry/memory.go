package entry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	reload  reloadListeners
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, entryID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, entryID)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Lookup(ctx context.Context, domain, uniqueID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e := s.lookupLocked(domain, uniqueID); e != nil {
		return e.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, domain, uniqueID)
}

func (s *MemoryStore) lookupLocked(domain, uniqueID string) *Entry {
	for _, e := range s.entries {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return e
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, domain string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if domain == "" || e.Domain == domain {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, e *Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookupLocked(e.Domain, e.UniqueID) != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyConfigured, e.Domain, e.UniqueID)
	}

	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := s.entries[stored.ID]; exists {
		return nil, fmt.Errorf("%w: entry id %s", ErrAlreadyConfigured, stored.ID)
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.entries[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, entryID string, data Data) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, entryID)
	}
	e.Data = data.Clone()
	e.UpdatedAt = time.Now().UTC()
	return e.Clone(), nil
}

func (s *MemoryStore) Reload(ctx context.Context, entryID string) error {
	e, err := s.Get(ctx, entryID)
	if err != nil {
		return err
	}
	return s.reload.notify(ctx, e)
}

func (s *MemoryStore) Delete(ctx context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, entryID)
	}
	delete(s.entries, entryID)
	return nil
}

func (s *MemoryStore) OnReload(fn ReloadFunc) {
	s.reload.add(fn)
}
