package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcbatch/internal/bulkissue/client"
	"vcbatch/internal/bulkissue/models"
	"vcbatch/internal/bulkissue/service"
	"vcbatch/internal/bulkissue/validator"
	"vcbatch/internal/platform/logger"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
	"vcbatch/pkg/testutil"
)

type stubService struct {
	outcome    *service.SubmitOutcome
	problems   []string
	submitErr  error
	stored     *models.BulkIssuanceBatch
	getErr     error
	refreshed  *models.BulkIssuanceBatch
	refreshErr error
	list       []*models.BulkIssuanceBatch

	submitRecipients []models.BulkRecipient
	csvFilename      string
	csvData          []byte
}

var _ Service = (*stubService)(nil)

func (s *stubService) Submit(_ context.Context, _, _ string, recipients []models.BulkRecipient, _ client.Options) (*service.SubmitOutcome, error) {
	s.submitRecipients = recipients
	return s.outcome, s.submitErr
}

func (s *stubService) SubmitCSV(_ context.Context, _, _, filename string, csvData []byte) (*service.SubmitOutcome, []string, error) {
	s.csvFilename = filename
	s.csvData = csvData
	return s.outcome, s.problems, s.submitErr
}

func (s *stubService) Get(context.Context, id.BatchID) (*models.BulkIssuanceBatch, error) {
	return s.stored, s.getErr
}

func (s *stubService) Refresh(context.Context, id.BatchID) (*models.BulkIssuanceBatch, error) {
	return s.refreshed, s.refreshErr
}

func (s *stubService) List(context.Context) ([]*models.BulkIssuanceBatch, error) {
	return s.list, nil
}

func (s *stubService) Template() string {
	return validator.CSVTemplate()
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, logger.Discard()).Register(r)
	return r
}

func sampleBatch() *models.BulkIssuanceBatch {
	return &models.BulkIssuanceBatch{
		BatchID:        id.NewBatchID(),
		TemplateID:     "tpl-1",
		IssuerDID:      "did:example:issuer",
		TotalRequested: 2,
		Status:         models.BatchProcessing,
		ProcessedAt:    time.Now().UTC(),
	}
}

func TestSubmit_Accepted(t *testing.T) {
	stub := &stubService{outcome: &service.SubmitOutcome{Batch: sampleBatch()}}
	router := newRouter(stub)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/bulk-issue", map[string]any{
		"template_id": "tpl-1",
		"issuer_did":  "did:example:issuer",
		"recipients": []map[string]any{
			{"recipient_did": "did:example:1"},
			{"recipient_email": "a@b.com"},
		},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusAccepted)
	require.Len(t, stub.submitRecipients, 2)

	resp := testutil.UnmarshalResponse[service.SubmitOutcome](t, rr)
	assert.Equal(t, 2, resp.Batch.TotalRequested)
}

func TestSubmit_ServiceRejection(t *testing.T) {
	stub := &stubService{submitErr: dErrors.New(dErrors.CodeInvalidInput, "no valid recipients to submit")}
	router := newRouter(stub)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/bulk-issue", map[string]any{
		"template_id": "tpl-1",
		"issuer_did":  "did:example:issuer",
		"recipients":  []map[string]any{{}},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func csvRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/bulk-issue/csv", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestSubmitCSV_Accepted(t *testing.T) {
	stub := &stubService{outcome: &service.SubmitOutcome{Batch: sampleBatch()}}
	router := newRouter(stub)

	req := csvRequest(t,
		map[string]string{"template_id": "tpl-1", "issuer_did": "did:example:issuer"},
		"recipients.csv",
		"recipient_did,recipient_email,credential_subject,custom_claims\ndid:example:1,,,\n")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusAccepted)
	assert.Equal(t, "recipients.csv", stub.csvFilename)
	assert.Contains(t, string(stub.csvData), "did:example:1")
}

func TestSubmitCSV_ValidationErrorsReturned(t *testing.T) {
	stub := &stubService{
		problems:  []string{"row 2: wrong number of fields"},
		submitErr: dErrors.New(dErrors.CodeInvalidInput, "csv file failed validation"),
	}
	router := newRouter(stub)

	req := csvRequest(t,
		map[string]string{"template_id": "tpl-1", "issuer_did": "did:example:issuer"},
		"broken.csv", "recipient_did\nbad")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	errs, ok := (*resp)["validation_errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestSubmitCSV_MissingFile(t *testing.T) {
	router := newRouter(&stubService{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("template_id", "tpl-1"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/bulk-issue/csv", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestTemplate_DownloadsCSV(t *testing.T) {
	router := newRouter(&stubService{})

	req := testutil.NewRequest(t, http.MethodGet, "/bulk-issue/template")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "bulk-issuance-template.csv")
	assert.True(t, strings.HasPrefix(rr.Body.String(),
		"recipient_did,recipient_email,credential_subject,custom_claims"))
}

func TestGetBatch(t *testing.T) {
	stored := sampleBatch()
	stub := &stubService{stored: stored}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodGet, "/bulk-issue/"+stored.BatchID.String())
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[models.BulkIssuanceBatch](t, rr)
	assert.Equal(t, stored.BatchID, resp.BatchID)
}

func TestGetBatch_BadID(t *testing.T) {
	router := newRouter(&stubService{})

	req := testutil.NewRequest(t, http.MethodGet, "/bulk-issue/not-a-uuid")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestGetBatch_NotFound(t *testing.T) {
	stub := &stubService{getErr: dErrors.New(dErrors.CodeNotFound, "batch not found")}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodGet, "/bulk-issue/"+id.NewBatchID().String())
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestRefresh(t *testing.T) {
	refreshed := sampleBatch()
	refreshed.Status = models.BatchCompleted
	refreshed.SuccessCount = 2
	stub := &stubService{refreshed: refreshed}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodPost, "/bulk-issue/"+refreshed.BatchID.String()+"/refresh")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[models.BulkIssuanceBatch](t, rr)
	assert.Equal(t, models.BatchCompleted, resp.Status)
}

func TestListBatches(t *testing.T) {
	stub := &stubService{list: []*models.BulkIssuanceBatch{sampleBatch(), sampleBatch()}}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodGet, "/bulk-issue")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[map[string][]models.BulkIssuanceBatch](t, rr)
	assert.Len(t, (*resp)["batches"], 2)
}
