package memstore

import (
	"fmt"
	"sort"
	"sync"

	"filehash/internal/domain"
)

// MemoryStore is a BuildStore that lives for one process.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
	rewrites  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]domain.Snapshot),
		rewrites:  make(map[string]string),
	}
}

func (s *MemoryStore) SaveSnapshot(snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = snap
	return nil
}

func (s *MemoryStore) GetSnapshot(id string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("snapshot not found: %s", id)
	}
	return snap, nil
}

func (s *MemoryStore) LatestSnapshots(n int) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if n > 0 && len(ids) > n {
		ids = ids[:n]
	}
	snaps := make([]domain.Snapshot, 0, len(ids))
	for _, id := range ids {
		snaps = append(snaps, s.snapshots[id])
	}
	return snaps, nil
}

func (s *MemoryStore) GetRewrite(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.rewrites[key]
	return code, ok, nil
}

func (s *MemoryStore) PutRewrite(key, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewrites[key] = code
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
