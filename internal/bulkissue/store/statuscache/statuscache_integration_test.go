//go:build integration

package statuscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcbatch/internal/bulkissue/models"
	"vcbatch/internal/bulkissue/store/statuscache"
	id "vcbatch/pkg/domain"
	"vcbatch/pkg/testutil/containers"
)

type StatusCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *statuscache.Cache
}

func TestStatusCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StatusCacheSuite))
}

func (s *StatusCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = statuscache.New(s.redis.Client, 5*time.Minute)
}

func (s *StatusCacheSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func cachedBatch() *models.BulkIssuanceBatch {
	return &models.BulkIssuanceBatch{
		BatchID:        id.NewBatchID(),
		TemplateID:     "tpl-1",
		IssuerDID:      "did:example:issuer",
		TotalRequested: 2,
		SuccessCount:   2,
		Status:         models.BatchCompleted,
		Credentials: []models.IssuedCredentialRecord{
			{CredentialID: "cred-1", RecipientDID: "did:example:1", IssuedAt: time.Now().UTC().Truncate(time.Second)},
		},
		ProcessedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func (s *StatusCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	stored := cachedBatch()

	s.Require().NoError(s.cache.Put(ctx, stored))

	found, err := s.cache.Fetch(ctx, stored.BatchID)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(stored.BatchID, found.BatchID)
	s.Equal(models.BatchCompleted, found.Status)
	s.Require().Len(found.Credentials, 1)
	s.Equal("cred-1", found.Credentials[0].CredentialID)
}

func (s *StatusCacheSuite) TestMissReturnsNil() {
	found, err := s.cache.Fetch(context.Background(), id.NewBatchID())
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *StatusCacheSuite) TestPutOverwrites() {
	ctx := context.Background()
	stored := cachedBatch()
	stored.Status = models.BatchProcessing
	stored.SuccessCount = 0
	s.Require().NoError(s.cache.Put(ctx, stored))

	stored.Status = models.BatchCompleted
	stored.SuccessCount = 2
	s.Require().NoError(s.cache.Put(ctx, stored))

	found, err := s.cache.Fetch(ctx, stored.BatchID)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(models.BatchCompleted, found.Status)
	s.Equal(2, found.SuccessCount)
}

func (s *StatusCacheSuite) TestInvalidate() {
	ctx := context.Background()
	stored := cachedBatch()
	s.Require().NoError(s.cache.Put(ctx, stored))
	s.Require().NoError(s.cache.Invalidate(ctx, stored.BatchID))

	found, err := s.cache.Fetch(ctx, stored.BatchID)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *StatusCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	shortCache := statuscache.New(s.redis.Client, time.Second)
	stored := cachedBatch()
	s.Require().NoError(shortCache.Put(ctx, stored))

	s.Require().Eventually(func() bool {
		found, err := shortCache.Fetch(ctx, stored.BatchID)
		return err == nil && found == nil
	}, 5*time.Second, 100*time.Millisecond)
}
