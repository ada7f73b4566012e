package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcbatch/internal/platform/logger"
	"vcbatch/internal/verification/aggregator"
	"vcbatch/internal/verification/models"
	"vcbatch/internal/verification/scheduler"
	"vcbatch/internal/verification/service"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
	"vcbatch/pkg/testutil"
)

// stubService records calls and returns canned responses.
type stubService struct {
	startID    id.RunID
	startErr   error
	startItems []models.VerificationItem

	status    *service.Status
	statusErr error

	controlErr error
	controlled []string

	export    aggregator.Export
	exportErr error

	list []*service.Status
}

var _ Service = (*stubService)(nil)

func (s *stubService) StartRun(_ context.Context, items []models.VerificationItem) (id.RunID, error) {
	s.startItems = items
	return s.startID, s.startErr
}

func (s *stubService) Status(context.Context, id.RunID) (*service.Status, error) {
	return s.status, s.statusErr
}

func (s *stubService) Pause(context.Context, id.RunID) error {
	s.controlled = append(s.controlled, "pause")
	return s.controlErr
}

func (s *stubService) Resume(context.Context, id.RunID) error {
	s.controlled = append(s.controlled, "resume")
	return s.controlErr
}

func (s *stubService) Stop(context.Context, id.RunID) error {
	s.controlled = append(s.controlled, "stop")
	return s.controlErr
}

func (s *stubService) Export(context.Context, id.RunID) (aggregator.Export, error) {
	return s.export, s.exportErr
}

func (s *stubService) List(context.Context) ([]*service.Status, error) {
	return s.list, nil
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, logger.Discard()).Register(r)
	return r
}

func TestStartRun_Accepted(t *testing.T) {
	stub := &stubService{startID: id.NewRunID()}
	router := newRouter(stub)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/runs", map[string]any{
		"items": []map[string]any{
			{"id": "cred-1", "credential": map[string]any{"type": "VerifiableCredential"}},
		},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusAccepted)
	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, stub.startID.String(), (*resp)["run_id"])
	require.Len(t, stub.startItems, 1)
	assert.Equal(t, "cred-1", stub.startItems[0].ID)
}

func TestStartRun_InvalidBody(t *testing.T) {
	router := newRouter(&stubService{})

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/runs", "{not json")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestStartRun_ServiceRejection(t *testing.T) {
	stub := &stubService{startErr: dErrors.New(dErrors.CodeInvalidInput, "item x has neither credential nor presentation")}
	router := newRouter(stub)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/runs", map[string]any{
		"items": []map[string]any{{"id": "x"}},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestRunStatus(t *testing.T) {
	runID := id.NewRunID()
	stub := &stubService{status: &service.Status{
		RunID: runID,
		Phase: scheduler.PhaseRunning,
		Progress: models.BatchProgress{
			Total: 10, Completed: 6, Verified: 4, Failed: 1, Warnings: 1,
		},
	}}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodGet, "/runs/"+runID.String())
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[service.Status](t, rr)
	assert.Equal(t, scheduler.PhaseRunning, resp.Phase)
	assert.Equal(t, 6, resp.Progress.Completed)
}

func TestRunStatus_BadID(t *testing.T) {
	router := newRouter(&stubService{})

	req := testutil.NewRequest(t, http.MethodGet, "/runs/not-a-uuid")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestRunStatus_NotFound(t *testing.T) {
	stub := &stubService{statusErr: dErrors.New(dErrors.CodeNotFound, "run not found")}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodGet, "/runs/"+id.NewRunID().String())
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestControlEndpoints(t *testing.T) {
	for _, action := range []string{"pause", "resume", "stop"} {
		t.Run(action, func(t *testing.T) {
			stub := &stubService{}
			router := newRouter(stub)

			req := testutil.NewRequest(t, http.MethodPost, "/runs/"+id.NewRunID().String()+"/"+action)
			rr := testutil.DoRequest(router, req)

			testutil.AssertStatus(t, rr, http.StatusNoContent)
			assert.Equal(t, []string{action}, stub.controlled)
		})
	}
}

func TestControl_ConflictWhenFinished(t *testing.T) {
	stub := &stubService{controlErr: dErrors.New(dErrors.CodeConflict, "run already finished")}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodPost, "/runs/"+id.NewRunID().String()+"/pause")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusConflict)
}

func TestExport_SetsContentDisposition(t *testing.T) {
	generated := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	stub := &stubService{export: aggregator.Export{
		Summary:     aggregator.Summary{Total: 2, Verified: 2, SuccessRatePercent: 100},
		GeneratedAt: generated,
		Results: []models.VerificationResult{
			{Seq: 0, ItemID: "a", Status: models.StatusVerified},
			{Seq: 1, ItemID: "b", Status: models.StatusVerified},
		},
	}}
	router := newRouter(stub)

	runID := id.NewRunID()
	req := testutil.NewRequest(t, http.MethodGet, "/runs/"+runID.String()+"/export")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	disposition := rr.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, `attachment; filename="verification-results-`))
	assert.Contains(t, disposition, "2026-03-14")

	resp := testutil.UnmarshalResponse[aggregator.Export](t, rr)
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Len(t, resp.Results, 2)
}

func TestListRuns(t *testing.T) {
	stub := &stubService{list: []*service.Status{
		{RunID: id.NewRunID(), Phase: scheduler.PhaseDone},
		{RunID: id.NewRunID(), Phase: scheduler.PhaseStopped},
	}}
	router := newRouter(stub)

	req := testutil.NewRequest(t, http.MethodGet, "/runs")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[map[string][]service.Status](t, rr)
	assert.Len(t, (*resp)["runs"], 2)
}
