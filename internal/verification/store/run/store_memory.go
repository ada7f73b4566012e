package run

import (
	"context"
	"sort"
	"sync"

	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
)

// MemoryStore keeps archived runs in memory. Default when postgres is not
// configured; history does not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.RunID]*Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[id.RunID]*Record)}
}

func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	if record == nil || record.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "record requires a run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID id.RunID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[runID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	return out, nil
}
