// Package statuscache caches batch status snapshots in Redis so repeated
// status reads do not hit the archive on every request. The cache is a
// best-effort layer: misses and errors fall through to the store.
package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"vcbatch/internal/bulkissue/models"
	id "vcbatch/pkg/domain"
)

const batchKeyPrefix = "bulkissue:batch:"

// Cache stores and retrieves batch snapshots with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a status cache. ttl bounds staleness between refreshes.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Put stores a snapshot. Terminal batches keep the same TTL; the archive is
// the durable record, the cache only absorbs read traffic.
func (c *Cache) Put(ctx context.Context, batch *models.BulkIssuanceBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, batchKeyPrefix+batch.BatchID.String(), payload, c.ttl).Err()
}

// Fetch returns the cached snapshot, or (nil, nil) on a miss.
func (c *Cache) Fetch(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error) {
	payload, err := c.client.Get(ctx, batchKeyPrefix+batchID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var batch models.BulkIssuanceBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Invalidate drops the cached snapshot, forcing the next read through to the
// archive.
func (c *Cache) Invalidate(ctx context.Context, batchID id.BatchID) error {
	return c.client.Del(ctx, batchKeyPrefix+batchID.String()).Err()
}
