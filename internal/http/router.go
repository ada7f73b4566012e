// Package httpapi assembles the public HTTP surface: run and bulk issuance
// endpoints behind auth, plus unauthenticated health and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	bulkhandler "vcbatch/internal/bulkissue/handler"
	"vcbatch/internal/platform/middleware"
	"vcbatch/internal/token"
	verifhandler "vcbatch/internal/verification/handler"
	dErrors "vcbatch/pkg/domain-errors"
	"vcbatch/pkg/platform/httputil"
)

// Check is a named dependency health probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Deps carries everything the router wires together.
type Deps struct {
	Logger       *slog.Logger
	Tokens       *token.Service
	AdminKeyHash string
	Runs         *verifhandler.Handler
	Bulk         *bulkhandler.Handler
	Checks       []Check
}

// tokenValidator adapts the JWT service to the auth middleware.
type tokenValidator struct {
	tokens *token.Service
}

func (v tokenValidator) Validate(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{Operator: claims.Operator, Scope: claims.Scope}, nil
}

// NewRouter builds the full route tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/healthz", handleHealth(deps.Checks))
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/auth/token", handleMintToken(deps))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ClientMetadata)
		r.Use(middleware.RequireAuth(tokenValidator{deps.Tokens}, deps.AdminKeyHash, deps.Logger))
		deps.Runs.Register(r)
		deps.Bulk.Register(r)
	})

	return r
}

func handleHealth(checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		detail := make(map[string]string, len(checks)+1)
		detail["status"] = "ok"
		for _, check := range checks {
			if err := check.Probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				detail["status"] = "degraded"
				detail[check.Name] = err.Error()
			} else {
				detail[check.Name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, detail)
	}
}

type mintTokenRequest struct {
	Operator         string `json:"operator"`
	Scope            string `json:"scope"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// handleMintToken exchanges the static admin key for a short-lived operator
// JWT. Disabled when no admin key hash is configured.
func handleMintToken(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.AdminKeyHash == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "token minting is disabled"))
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" || bcrypt.CompareHashAndPassword([]byte(deps.AdminKeyHash), []byte(key)) != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid api key"))
			return
		}

		req, ok := httputil.Decode[mintTokenRequest](w, r)
		if !ok {
			return
		}
		if req.Operator == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "operator is required"))
			return
		}
		expiry := time.Duration(req.ExpiresInMinutes) * time.Minute
		if expiry <= 0 {
			expiry = time.Hour
		}

		signed, err := deps.Tokens.Generate(req.Operator, req.Scope, expiry)
		if err != nil {
			deps.Logger.ErrorContext(r.Context(), "failed to sign token", "error", err)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to sign token"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": signed})
	}
}
