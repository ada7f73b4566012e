package batch

import (
	"context"
	"sort"
	"sync"

	"vcbatch/internal/bulkissue/models"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
)

// MemoryStore keeps batch history in memory. Default when postgres is not
// configured.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[id.BatchID]*models.BulkIssuanceBatch
}

func NewMemory() *MemoryStore {
	return &MemoryStore{batches: make(map[id.BatchID]*models.BulkIssuanceBatch)}
}

func (s *MemoryStore) Save(_ context.Context, batch *models.BulkIssuanceBatch) error {
	if batch == nil || batch.BatchID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "batch requires an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *batch
	s.batches[batch.BatchID] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "batch not found")
	}
	clone := *batch
	return &clone, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.BulkIssuanceBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.BulkIssuanceBatch, 0, len(s.batches))
	for _, batch := range s.batches {
		clone := *batch
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProcessedAt.After(out[j].ProcessedAt)
	})
	return out, nil
}
