package correction

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemStore is an in-memory [Repository]. It is safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	files map[string]map[int]BlockResult
}

var _ Repository = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string]map[int]BlockResult)}
}

// Upsert stores a copy of r, replacing any block with the same index.
func (s *MemStore) Upsert(_ context.Context, fileID string, r BlockResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocks, ok := s.files[fileID]
	if !ok {
		blocks = make(map[int]BlockResult)
		s.files[fileID] = blocks
	}
	blocks[r.BlockIndex] = cloneBlock(r)
	return nil
}

// FindAll returns copies of the stored blocks of fileID ordered by index.
func (s *MemStore) FindAll(_ context.Context, fileID string) ([]BlockResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := s.files[fileID]
	out := make([]BlockResult, 0, len(blocks))
	for _, idx := range slices.Sorted(maps.Keys(blocks)) {
		out = append(out, cloneBlock(blocks[idx]))
	}
	return out, nil
}

func cloneBlock(r BlockResult) BlockResult {
	r.SegmentIndices = slices.Clone(r.SegmentIndices)
	r.Alignments = slices.Clone(r.Alignments)
	r.ValidationIssues = slices.Clone(r.ValidationIssues)
	return r
}
