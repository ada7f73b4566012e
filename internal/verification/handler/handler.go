// Package handler exposes verification runs over HTTP.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vcbatch/internal/verification/aggregator"
	"vcbatch/internal/verification/models"
	"vcbatch/internal/verification/service"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
	"vcbatch/pkg/platform/httputil"
)

// Service defines the run operations the handler depends on.
type Service interface {
	StartRun(ctx context.Context, items []models.VerificationItem) (id.RunID, error)
	Status(ctx context.Context, runID id.RunID) (*service.Status, error)
	Pause(ctx context.Context, runID id.RunID) error
	Resume(ctx context.Context, runID id.RunID) error
	Stop(ctx context.Context, runID id.RunID) error
	Export(ctx context.Context, runID id.RunID) (aggregator.Export, error)
	List(ctx context.Context) ([]*service.Status, error)
}

// Handler handles the /runs endpoints.
type Handler struct {
	logger *slog.Logger
	runs   Service
}

func New(runs Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, runs: runs}
}

// Register mounts the run routes on the router. Auth and client metadata
// middlewares are applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.handleStartRun)
		r.Get("/", h.handleListRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", h.handleRunStatus)
			r.Post("/pause", h.handlePause)
			r.Post("/resume", h.handleResume)
			r.Post("/stop", h.handleStop)
			r.Get("/export", h.handleExport)
		})
	})
}

type startRunRequest struct {
	Items []models.VerificationItem `json:"items"`
}

type startRunResponse struct {
	RunID string `json:"run_id"`
}

func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[startRunRequest](w, r)
	if !ok {
		return
	}

	runID, err := h.runs.StartRun(ctx, req.Items)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected run request", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, startRunResponse{RunID: runID.String()})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.runs.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list runs", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"runs": statuses})
}

func (h *Handler) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}
	status, err := h.runs.Status(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.runs.Pause)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.runs.Resume)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.runs.Stop)
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request, op func(context.Context, id.RunID) error) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), runID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}
	export, err := h.runs.Export(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filename := fmt.Sprintf("verification-results-%s-%s.json",
		runID.String(), export.GeneratedAt.Format(time.DateOnly))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	httputil.WriteJSON(w, http.StatusOK, export)
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (id.RunID, bool) {
	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid run id"))
		return id.RunID{}, false
	}
	return runID, true
}
