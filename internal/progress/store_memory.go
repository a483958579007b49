package progress

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for dev and tests. Terminal snapshots
// are evicted after TTL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Set(ctx context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A late update with a lower percent is stale; drop it whole so its
	// stage and message cannot overwrite a newer snapshot.
	if existing, ok := s.entries[state.AnalysisID]; ok && existing.state.Percent > state.Percent {
		return nil
	}

	entry := memoryEntry{state: state}
	if state.Terminal() {
		entry.expiresAt = s.now().Add(TTL)
	}
	s.entries[state.AnalysisID] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, analysisID string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[analysisID]
	if !ok {
		return State{}, false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.entries, analysisID)
		return State{}, false, nil
	}
	return entry.state, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, analysisID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, analysisID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
