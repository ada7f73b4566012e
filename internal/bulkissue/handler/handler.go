// Package handler exposes bulk issuance over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcbatch/internal/bulkissue/client"
	"vcbatch/internal/bulkissue/models"
	"vcbatch/internal/bulkissue/service"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
	"vcbatch/pkg/platform/httputil"
)

// maxCSVBytes caps CSV uploads. Bulk files are recipient lists, not datasets.
const maxCSVBytes = 5 << 20

// Service defines the bulk issuance operations the handler depends on.
type Service interface {
	Submit(ctx context.Context, templateID, issuerDID string, recipients []models.BulkRecipient, opts client.Options) (*service.SubmitOutcome, error)
	SubmitCSV(ctx context.Context, templateID, issuerDID, filename string, csvData []byte) (*service.SubmitOutcome, []string, error)
	Get(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error)
	Refresh(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error)
	List(ctx context.Context) ([]*models.BulkIssuanceBatch, error)
	Template() string
}

// Handler handles the /bulk-issue endpoints.
type Handler struct {
	logger *slog.Logger
	bulk   Service
}

func New(bulk Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, bulk: bulk}
}

// Register mounts the bulk issuance routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/bulk-issue", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/", h.handleList)
		r.Post("/csv", h.handleSubmitCSV)
		r.Get("/template", h.handleTemplate)
		r.Route("/{batchID}", func(r chi.Router) {
			r.Get("/", h.handleGetBatch)
			r.Post("/refresh", h.handleRefresh)
		})
	})
}

type submitRequest struct {
	TemplateID string                 `json:"template_id"`
	IssuerDID  string                 `json:"issuer_did"`
	Recipients []models.BulkRecipient `json:"recipients"`
	Options    client.Options         `json:"options"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[submitRequest](w, r)
	if !ok {
		return
	}

	outcome, err := h.bulk.Submit(ctx, req.TemplateID, req.IssuerDID, req.Recipients, req.Options)
	if err != nil {
		h.logger.WarnContext(ctx, "bulk submission rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, outcome)
}

func (h *Handler) handleSubmitCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxCSVBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing csv file"))
		return
	}
	defer file.Close()

	csvData, err := io.ReadAll(io.LimitReader(file, maxCSVBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable csv file"))
		return
	}

	outcome, problems, err := h.bulk.SubmitCSV(ctx,
		r.FormValue("template_id"), r.FormValue("issuer_did"), header.Filename, csvData)
	if err != nil {
		if len(problems) > 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_input",
				"validation_errors": problems,
			})
			return
		}
		h.logger.WarnContext(ctx, "csv submission rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, outcome)
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="bulk-issuance-template.csv"`)
	_, _ = w.Write([]byte(h.bulk.Template()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	batches, err := h.bulk.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list batches", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.batchID(w, r)
	if !ok {
		return
	}
	stored, err := h.bulk.Get(r.Context(), batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stored)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.batchID(w, r)
	if !ok {
		return
	}
	refreshed, err := h.bulk.Refresh(r.Context(), batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, refreshed)
}

func (h *Handler) batchID(w http.ResponseWriter, r *http.Request) (id.BatchID, bool) {
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid batch id"))
		return id.BatchID{}, false
	}
	return batchID, true
}
