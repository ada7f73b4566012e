package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// Context keys for client metadata.
type contextKeyClientIP struct{}
type contextKeyUserAgent struct{}
type contextKeyClientName struct{}

// ClientMetadata extracts the client IP, raw User-Agent, and a parsed
// browser/OS summary from the request and stores them on the context. Domain
// events attach this metadata so submissions can be traced back to a caller.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawUA := r.Header.Get("User-Agent")

		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIPFromRequest(r))
		ctx = context.WithValue(ctx, contextKeyUserAgent{}, rawUA)
		ctx = context.WithValue(ctx, contextKeyClientName{}, summarizeUserAgent(rawUA))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(contextKeyClientIP{}).(string); ok {
		return ip
	}
	return ""
}

// GetUserAgent retrieves the raw User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(contextKeyUserAgent{}).(string); ok {
		return ua
	}
	return ""
}

// GetClientName retrieves the parsed browser/OS summary from the context.
func GetClientName(ctx context.Context) string {
	if name, ok := ctx.Value(contextKeyClientName{}).(string); ok {
		return name
	}
	return ""
}

// WithClientMetadata injects client metadata into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, rawUA string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIP)
	ctx = context.WithValue(ctx, contextKeyUserAgent{}, rawUA)
	return context.WithValue(ctx, contextKeyClientName{}, summarizeUserAgent(rawUA))
}

// summarizeUserAgent reduces a raw User-Agent to "Browser version (OS)" for
// event metadata. Non-browser agents (curl, SDKs) fall back to the raw string.
func summarizeUserAgent(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return rawUA
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := ua.OS(); os != "" {
		summary += " (" + os + ")"
	}
	return summary
}

func clientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs; the first is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
