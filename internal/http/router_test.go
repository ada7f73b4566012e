package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	bulkclient "vcbatch/internal/bulkissue/client"
	bulkhandler "vcbatch/internal/bulkissue/handler"
	bulkmodels "vcbatch/internal/bulkissue/models"
	bulkservice "vcbatch/internal/bulkissue/service"
	"vcbatch/internal/bulkissue/validator"
	"vcbatch/internal/platform/logger"
	"vcbatch/internal/token"
	"vcbatch/internal/verification/aggregator"
	verifhandler "vcbatch/internal/verification/handler"
	"vcbatch/internal/verification/models"
	"vcbatch/internal/verification/service"
	id "vcbatch/pkg/domain"
	"vcbatch/pkg/testutil"
)

type fakeRuns struct{}

func (fakeRuns) StartRun(context.Context, []models.VerificationItem) (id.RunID, error) {
	return id.NewRunID(), nil
}
func (fakeRuns) Status(context.Context, id.RunID) (*service.Status, error) {
	return &service.Status{}, nil
}
func (fakeRuns) Pause(context.Context, id.RunID) error  { return nil }
func (fakeRuns) Resume(context.Context, id.RunID) error { return nil }
func (fakeRuns) Stop(context.Context, id.RunID) error   { return nil }
func (fakeRuns) Export(context.Context, id.RunID) (aggregator.Export, error) {
	return aggregator.Export{GeneratedAt: time.Now()}, nil
}
func (fakeRuns) List(context.Context) ([]*service.Status, error) { return nil, nil }

type fakeBulk struct{}

func (fakeBulk) Submit(context.Context, string, string, []bulkmodels.BulkRecipient, bulkclient.Options) (*bulkservice.SubmitOutcome, error) {
	return &bulkservice.SubmitOutcome{Batch: &bulkmodels.BulkIssuanceBatch{BatchID: id.NewBatchID()}}, nil
}
func (fakeBulk) SubmitCSV(context.Context, string, string, string, []byte) (*bulkservice.SubmitOutcome, []string, error) {
	return &bulkservice.SubmitOutcome{Batch: &bulkmodels.BulkIssuanceBatch{BatchID: id.NewBatchID()}}, nil, nil
}
func (fakeBulk) Get(context.Context, id.BatchID) (*bulkmodels.BulkIssuanceBatch, error) {
	return &bulkmodels.BulkIssuanceBatch{}, nil
}
func (fakeBulk) Refresh(context.Context, id.BatchID) (*bulkmodels.BulkIssuanceBatch, error) {
	return &bulkmodels.BulkIssuanceBatch{}, nil
}
func (fakeBulk) List(context.Context) ([]*bulkmodels.BulkIssuanceBatch, error) { return nil, nil }
func (fakeBulk) Template() string                                             { return validator.CSVTemplate() }

func newTestRouter(t *testing.T, adminKeyHash string) (http.Handler, *token.Service) {
	t.Helper()
	tokens := token.NewService("test-signing-key", "vcbatch-test")
	router := NewRouter(Deps{
		Logger:       logger.Discard(),
		Tokens:       tokens,
		AdminKeyHash: adminKeyHash,
		Runs:         verifhandler.New(fakeRuns{}, logger.Discard()),
		Bulk:         bulkhandler.New(fakeBulk{}, logger.Discard()),
		Checks: []Check{
			{Name: "store", Probe: func(context.Context) error { return nil }},
		},
	})
	return router, tokens
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, "ok", (*resp)["status"])
	assert.Equal(t, "ok", (*resp)["store"])
}

func TestMetrics_Exposed(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestProtectedRoutes_RejectAnonymous(t *testing.T) {
	router, _ := newTestRouter(t, "")

	for _, path := range []string{"/runs", "/bulk-issue"} {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "path %s", path)
	}
}

func TestProtectedRoutes_AcceptBearerToken(t *testing.T) {
	router, tokens := newTestRouter(t, "")

	signed, err := tokens.Generate("ops@example.com", "batch:write", time.Hour)
	require.NoError(t, err)

	req := testutil.NewRequest(t, http.MethodGet, "/runs")
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusOK(t, rr)
}

func TestProtectedRoutes_AcceptAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	router, _ := newTestRouter(t, string(hash))

	req := testutil.NewRequest(t, http.MethodGet, "/bulk-issue")
	req.Header.Set("X-API-Key", "super-secret")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusOK(t, rr)
}

func TestMintToken_FullFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	router, _ := newTestRouter(t, string(hash))

	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/token", map[string]any{
		"operator": "ops@example.com",
		"scope":    "batch:write",
	})
	req.Header.Set("X-API-Key", "super-secret")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusOK(t, rr)

	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	signed := (*resp)["token"]
	require.NotEmpty(t, signed)

	// The minted token opens the protected routes.
	authed := testutil.NewRequest(t, http.MethodGet, "/runs")
	authed.Header.Set("Authorization", "Bearer "+signed)
	rr = testutil.DoRequest(router, authed)
	testutil.AssertStatusOK(t, rr)
}

func TestMintToken_BadKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	router, _ := newTestRouter(t, string(hash))

	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/token", map[string]any{"operator": "x"})
	req.Header.Set("X-API-Key", "wrong")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestMintToken_DisabledWithoutHash(t *testing.T) {
	router, _ := newTestRouter(t, "")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/token", map[string]any{"operator": "x"})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestHealthz_Degraded(t *testing.T) {
	tokens := token.NewService("k", "iss")
	router := NewRouter(Deps{
		Logger: logger.Discard(),
		Tokens: tokens,
		Runs:   verifhandler.New(fakeRuns{}, logger.Discard()),
		Bulk:   bulkhandler.New(fakeBulk{}, logger.Discard()),
		Checks: []Check{
			{Name: "redis", Probe: func(context.Context) error { return context.DeadlineExceeded }},
		},
	})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, "degraded", (*resp)["status"])
}
