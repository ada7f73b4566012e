// Package client wraps the remote bulk issuance API behind the Issuer
// interface: structured submission, CSV upload, and on-demand status polling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vcbatch/internal/bulkissue/models"
	"vcbatch/internal/platform/config"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
)

//go:generate mockgen -destination=mocks/mock_issuer.go -package=mocks vcbatch/internal/bulkissue/client Issuer

// Options carries issuance parameters forwarded verbatim to the remote API.
type Options struct {
	// Revocable requests a revocation-capable credential.
	Revocable bool `json:"revocable,omitempty"`
	// ExpiresInDays caps credential validity; zero means the template default.
	ExpiresInDays int `json:"expires_in_days,omitempty"`
}

// Issuer abstracts the remote bulk issuance service. Submission errors are
// returned to the caller untouched; there is no retry here, the caller decides
// whether to re-submit.
type Issuer interface {
	Submit(ctx context.Context, templateID, issuerDID string, recipients []models.BulkRecipient, opts Options) (*models.BulkIssuanceBatch, error)
	SubmitCSV(ctx context.Context, templateID, issuerDID, filename string, csvData []byte) (*models.BulkIssuanceBatch, error)
	PollStatus(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error)
}

// HTTPIssuer talks to the issuance API over HTTP.
type HTTPIssuer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

// Option configures an HTTPIssuer.
type Option func(*HTTPIssuer)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(i *HTTPIssuer) {
		i.httpClient = c
	}
}

// NewHTTP creates an issuance client from configuration.
func NewHTTP(cfg config.Issuance, opts ...Option) *HTTPIssuer {
	i := &HTTPIssuer{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer("vcbatch/bulkissue/client"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type submitRequest struct {
	TemplateID string                 `json:"template_id"`
	IssuerDID  string                 `json:"issuer_did"`
	Recipients []models.BulkRecipient `json:"recipients"`
	Options    Options                `json:"options"`
}

// batchResponse mirrors the issuance API's batch shape.
type batchResponse struct {
	BatchID        string                          `json:"batch_id"`
	TotalRequested int                             `json:"total_requested"`
	SuccessCount   int                             `json:"success_count"`
	FailureCount   int                             `json:"failure_count"`
	Status         string                          `json:"status"`
	Credentials    []models.IssuedCredentialRecord `json:"credentials,omitempty"`
	Failures       []models.FailureRecord          `json:"failures,omitempty"`
	ProcessedAt    time.Time                       `json:"processed_at"`
}

// Submit sends a structured recipient list. The caller is expected to have
// already filtered the list through the validator; this method does not
// re-validate.
func (i *HTTPIssuer) Submit(ctx context.Context, templateID, issuerDID string, recipients []models.BulkRecipient, opts Options) (*models.BulkIssuanceBatch, error) {
	ctx, span := i.tracer.Start(ctx, "issuer.submit",
		trace.WithAttributes(
			attribute.String("template.id", templateID),
			attribute.Int("recipients", len(recipients)),
		))
	defer span.End()

	payload, err := json.Marshal(submitRequest{
		TemplateID: templateID,
		IssuerDID:  issuerDID,
		Recipients: recipients,
		Options:    opts,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "encode bulk issue request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/bulk-issue", bytes.NewReader(payload))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build bulk issue request")
	}
	req.Header.Set("Content-Type", "application/json")

	batch, err := i.do(req, templateID, issuerDID)
	if err != nil {
		span.RecordError(err)
	}
	return batch, err
}

// SubmitCSV uploads the raw CSV file as multipart form data. Structural
// validation happens before this call; the remote service parses the file
// again on its side.
func (i *HTTPIssuer) SubmitCSV(ctx context.Context, templateID, issuerDID, filename string, csvData []byte) (*models.BulkIssuanceBatch, error) {
	ctx, span := i.tracer.Start(ctx, "issuer.submit_csv",
		trace.WithAttributes(
			attribute.String("template.id", templateID),
			attribute.String("file.name", filename),
		))
	defer span.End()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("template_id", templateID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build multipart form")
	}
	if err := writer.WriteField("issuer_did", issuerDID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build multipart form")
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build multipart form")
	}
	if _, err := part.Write(csvData); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build multipart form")
	}
	if err := writer.Close(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/bulk-issue/csv", &body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build bulk issue request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	batch, err := i.do(req, templateID, issuerDID)
	if err != nil {
		span.RecordError(err)
	}
	return batch, err
}

// PollStatus fetches the current batch state. Polling cadence is the
// caller's responsibility; this is a single on-demand read.
func (i *HTTPIssuer) PollStatus(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error) {
	ctx, span := i.tracer.Start(ctx, "issuer.poll_status",
		trace.WithAttributes(attribute.String("batch.id", batchID.String())))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.baseURL+"/bulk-issue/"+batchID.String()+"/status", nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build status request")
	}

	batch, err := i.do(req, "", "")
	if err != nil {
		span.RecordError(err)
	}
	return batch, err
}

func (i *HTTPIssuer) do(req *http.Request, templateID, issuerDID string) (*models.BulkIssuanceBatch, error) {
	if i.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.apiKey)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, dErrors.New(dErrors.CodeNotFound, "batch not found")
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, dErrors.New(dErrors.CodeBadRequest,
			"issuance service rejected the request: "+string(bytes.TrimSpace(body)))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("issuance service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "decode issuance response")
	}
	return mapBatch(&decoded, templateID, issuerDID)
}

func mapBatch(resp *batchResponse, templateID, issuerDID string) (*models.BulkIssuanceBatch, error) {
	batchID, err := id.ParseBatchID(resp.BatchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance response has invalid batch id")
	}
	return &models.BulkIssuanceBatch{
		BatchID:        batchID,
		TemplateID:     templateID,
		IssuerDID:      issuerDID,
		TotalRequested: resp.TotalRequested,
		SuccessCount:   resp.SuccessCount,
		FailureCount:   resp.FailureCount,
		Status:         models.BatchStatus(resp.Status),
		Credentials:    resp.Credentials,
		Failures:       resp.Failures,
		ProcessedAt:    resp.ProcessedAt,
	}, nil
}
