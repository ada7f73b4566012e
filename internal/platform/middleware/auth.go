package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenValidator defines the interface for validating operator tokens.
type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims represents the claims we expect from the token validator.
type TokenClaims struct {
	Operator string
	Scope    string
}

// Context keys for storing authenticated operator information.
type contextKeyOperator struct{}
type contextKeyScope struct{}

// GetOperator retrieves the authenticated operator from the context.
func GetOperator(ctx context.Context) string {
	operator, ok := ctx.Value(contextKeyOperator{}).(string)
	if !ok {
		return ""
	}
	return operator
}

// GetScope retrieves the token scope from the context.
func GetScope(ctx context.Context) string {
	scope, ok := ctx.Value(contextKeyScope{}).(string)
	if !ok {
		return ""
	}
	return scope
}

// WithOperator injects operator identity into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, contextKeyOperator{}, operator)
}

// RequireAuth authenticates requests with either a Bearer JWT or the static
// admin API key (X-API-Key checked against a bcrypt hash). Key auth is meant
// for automation; humans get short-lived JWTs.
func RequireAuth(validator TokenValidator, adminKeyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" && adminKeyHash != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)); err != nil {
					logger.WarnContext(r.Context(), "rejected api key auth", "path", r.URL.Path)
					http.Error(w, "invalid api key", http.StatusUnauthorized)
					return
				}
				ctx := context.WithValue(r.Context(), contextKeyOperator{}, "api-key")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				http.Error(w, "missing credentials", http.StatusUnauthorized)
				return
			}

			claims, err := validator.Validate(tokenString)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected token auth", "path", r.URL.Path, "error", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyOperator{}, claims.Operator)
			ctx = context.WithValue(ctx, contextKeyScope{}, claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
