// Package batch persists bulk issuance batch history.
package batch

import (
	"context"

	"vcbatch/internal/bulkissue/models"
	id "vcbatch/pkg/domain"
)

// Store is the batch history archive. Save is an upsert: a refresh overwrites
// the stored snapshot for the same batch id.
type Store interface {
	Save(ctx context.Context, batch *models.BulkIssuanceBatch) error
	Get(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error)
	List(ctx context.Context) ([]*models.BulkIssuanceBatch, error)
}
