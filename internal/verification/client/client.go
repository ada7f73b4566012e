// Package client wraps the remote verifier API behind the Verifier interface.
// The scheduler depends only on the interface; tests substitute a gomock
// double or an httptest-backed instance.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vcbatch/internal/platform/config"
	"vcbatch/internal/verification/models"
	dErrors "vcbatch/pkg/domain-errors"
)

//go:generate mockgen -destination=mocks/mock_verifier.go -package=mocks vcbatch/internal/verification/client Verifier

// Verifier submits one credential or presentation for verification and
// returns a structured result. Implementations own request-level timeouts;
// the scheduler imposes none.
type Verifier interface {
	Verify(ctx context.Context, item models.VerificationItem) (models.VerificationResult, error)
}

// HTTPVerifier calls POST {baseURL}/verify. The endpoint differentiates
// credentials from presentations by payload shape.
type HTTPVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

// Option configures an HTTPVerifier.
type Option func(*HTTPVerifier)

// WithHTTPClient overrides the underlying HTTP client. The default applies
// the configured request timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(v *HTTPVerifier) {
		v.httpClient = c
	}
}

// NewHTTP creates a verifier client from configuration.
func NewHTTP(cfg config.Verifier, opts ...Option) *HTTPVerifier {
	v := &HTTPVerifier{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer("vcbatch/verification/client"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// verifyRequest is the wire shape for POST /verify. Exactly one field is set.
type verifyRequest struct {
	Credential   json.RawMessage `json:"credential,omitempty"`
	Presentation json.RawMessage `json:"presentation,omitempty"`
}

// verifyResponse mirrors the verifier's response. Sub-check booleans and the
// trust score are optional; absent values mean the verifier skipped them.
type verifyResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Checks   []struct {
		Name    string         `json:"name"`
		Status  string         `json:"status"`
		Message string         `json:"message,omitempty"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"checks,omitempty"`
	IssuerVerified bool     `json:"issuerVerified"`
	SchemaValid    bool     `json:"schemaValid"`
	SignatureValid bool     `json:"signatureValid"`
	NotExpired     bool     `json:"notExpired"`
	NotRevoked     bool     `json:"notRevoked"`
	TrustScore     *float64 `json:"trustScore,omitempty"`
}

// Verify submits one item and maps the response into a VerificationResult.
// Check order from the verifier is preserved. The result's Seq is assigned by
// the scheduler, not here.
func (v *HTTPVerifier) Verify(ctx context.Context, item models.VerificationItem) (models.VerificationResult, error) {
	kind := "credential"
	if item.IsPresentation() {
		kind = "presentation"
	}
	ctx, span := v.tracer.Start(ctx, "verifier.verify",
		trace.WithAttributes(
			attribute.String("item.id", item.ID),
			attribute.String("item.kind", kind),
		))
	defer span.End()

	start := time.Now()
	resp, err := v.post(ctx, item)
	if err != nil {
		span.RecordError(err)
		return models.VerificationResult{}, err
	}

	return mapResult(item, resp, time.Since(start)), nil
}

func (v *HTTPVerifier) post(ctx context.Context, item models.VerificationItem) (*verifyResponse, error) {
	reqBody := verifyRequest{Credential: item.Credential}
	if item.IsPresentation() {
		reqBody = verifyRequest{Presentation: item.Presentation}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "encode verify request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build verify request")
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	httpResp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verifier unreachable")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("verifier returned %d: %s", httpResp.StatusCode, bytes.TrimSpace(body)))
	}

	var decoded verifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "decode verify response")
	}
	return &decoded, nil
}

func mapResult(item models.VerificationItem, resp *verifyResponse, elapsed time.Duration) models.VerificationResult {
	status := models.StatusFailed
	if resp.Valid {
		status = models.StatusVerified
		if len(resp.Warnings) > 0 {
			status = models.StatusWarning
		}
	}

	checks := make([]models.VerificationCheck, 0, len(resp.Checks))
	for _, c := range resp.Checks {
		checks = append(checks, models.VerificationCheck{
			Name:    c.Name,
			Status:  models.CheckStatus(c.Status),
			Message: c.Message,
			Details: c.Details,
		})
	}

	return models.VerificationResult{
		ItemID:     item.ID,
		Status:     status,
		Errors:     resp.Errors,
		Warnings:   resp.Warnings,
		Checks:     checks,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  time.Now(),
		Metadata: models.ResultMetadata{
			IssuerVerified: resp.IssuerVerified,
			SchemaValid:    resp.SchemaValid,
			SignatureValid: resp.SignatureValid,
			NotExpired:     resp.NotExpired,
			NotRevoked:     resp.NotRevoked,
			TrustScore:     normalizeTrustScore(resp.TrustScore),
		},
	}
}

// normalizeTrustScore converts the verifier's trust score to an integer
// percentage. Current verifier builds report 0-100; older builds report a
// 0-1 fraction, so values at or below 1.0 are scaled up. The boundary value
// 1.0 is read as 100%, matching the legacy verifier's meaning.
func normalizeTrustScore(score *float64) int {
	if score == nil {
		return 0
	}
	s := *score
	if s <= 1.0 {
		s *= 100
	}
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return int(math.Round(s))
}
