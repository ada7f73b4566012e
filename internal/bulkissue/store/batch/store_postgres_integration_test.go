//go:build integration

package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcbatch/internal/bulkissue/models"
	"vcbatch/internal/bulkissue/store/batch"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
	"vcbatch/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *batch.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	_, err := s.postgres.Exec(context.Background(), batch.Schema)
	s.Require().NoError(err)

	s.store = batch.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "bulk_issuance_batches")
	s.Require().NoError(err)
}

func newStoredBatch(processed time.Time) *models.BulkIssuanceBatch {
	return &models.BulkIssuanceBatch{
		BatchID:        id.NewBatchID(),
		TemplateID:     "tpl-1",
		IssuerDID:      "did:example:issuer",
		TotalRequested: 3,
		SuccessCount:   2,
		FailureCount:   1,
		Status:         models.BatchPartial,
		Credentials: []models.IssuedCredentialRecord{
			{CredentialID: "cred-1", RecipientDID: "did:example:1", IssuedAt: processed},
			{CredentialID: "cred-2", RecipientEmail: "b@example.com", IssuedAt: processed},
		},
		Failures: []models.FailureRecord{
			{RecipientEmail: "c@example.com", Reason: "unknown holder"},
		},
		ProcessedAt: processed,
	}
}

func (s *PostgresStoreSuite) TestSaveAndGetRoundTrip() {
	ctx := context.Background()
	stored := newStoredBatch(time.Now().UTC().Truncate(time.Millisecond))

	s.Require().NoError(s.store.Save(ctx, stored))

	got, err := s.store.Get(ctx, stored.BatchID)
	s.Require().NoError(err)
	s.Equal(stored.BatchID, got.BatchID)
	s.Equal(stored.TemplateID, got.TemplateID)
	s.Equal(models.BatchPartial, got.Status)
	s.Require().Len(got.Credentials, 2)
	s.Equal("cred-1", got.Credentials[0].CredentialID)
	s.Require().Len(got.Failures, 1)
	s.Equal("unknown holder", got.Failures[0].Reason)
}

func (s *PostgresStoreSuite) TestRefreshOverwritesSnapshot() {
	ctx := context.Background()
	stored := newStoredBatch(time.Now().UTC())
	stored.Status = models.BatchProcessing
	stored.SuccessCount = 0
	stored.FailureCount = 0
	stored.Credentials = nil
	stored.Failures = nil
	s.Require().NoError(s.store.Save(ctx, stored))

	stored.Status = models.BatchCompleted
	stored.SuccessCount = 3
	stored.Credentials = []models.IssuedCredentialRecord{
		{CredentialID: "cred-1", IssuedAt: time.Now().UTC()},
	}
	s.Require().NoError(s.store.Save(ctx, stored))

	got, err := s.store.Get(ctx, stored.BatchID)
	s.Require().NoError(err)
	s.Equal(models.BatchCompleted, got.Status)
	s.Equal(3, got.SuccessCount)
	s.Len(got.Credentials, 1)

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *PostgresStoreSuite) TestGetNotFound() {
	_, err := s.store.Get(context.Background(), id.NewBatchID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestListNewestFirst() {
	ctx := context.Background()
	base := time.Now().UTC()

	var want []id.BatchID
	for i := 0; i < 4; i++ {
		stored := newStoredBatch(base.Add(time.Duration(i) * time.Minute))
		s.Require().NoError(s.store.Save(ctx, stored))
		want = append(want, stored.BatchID)
	}

	batches, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(batches, 4)
	for i, got := range batches {
		s.Equal(want[len(want)-1-i], got.BatchID)
	}
}

func (s *PostgresStoreSuite) TestEmptyRecordListsStayEmpty() {
	ctx := context.Background()
	stored := newStoredBatch(time.Now().UTC())
	stored.Credentials = nil
	stored.Failures = nil
	s.Require().NoError(s.store.Save(ctx, stored))

	got, err := s.store.Get(ctx, stored.BatchID)
	s.Require().NoError(err)
	s.Nil(got.Credentials)
	s.Nil(got.Failures)
}
