package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// SecureHeaders provides configurable security headers
type SecureHeaders struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	ContentSecurityPolicy string
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	PermissionsPolicy     string

	// DevMode skips the CSP so a local frontend dev server can talk to the API.
	DevMode bool
}

// DefaultSecureHeaders returns secure headers for a JSON-only API.
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		HSTSMaxAge:            63072000, // 2 years
		HSTSIncludeSubdomains: true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "camera=(), geolocation=(), microphone=(), payment=()",
	}
}

// Handler returns the middleware handler
func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		if sh.HSTSMaxAge > 0 && r.TLS != nil {
			hsts := fmt.Sprintf("max-age=%d", sh.HSTSMaxAge)
			if sh.HSTSIncludeSubdomains {
				hsts += "; includeSubDomains"
			}
			h.Set("Strict-Transport-Security", hsts)
		}
		if sh.ContentSecurityPolicy != "" && !sh.DevMode {
			h.Set("Content-Security-Policy", sh.ContentSecurityPolicy)
		}
		setIf(h, "X-Frame-Options", sh.XFrameOptions)
		setIf(h, "X-Content-Type-Options", sh.XContentTypeOptions)
		setIf(h, "Referrer-Policy", sh.ReferrerPolicy)
		setIf(h, "Permissions-Policy", sh.PermissionsPolicy)

		next.ServeHTTP(w, r)
	})
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

// AuditLog records every state-changing request. Reads pass through silently;
// the only write the API accepts is appending a sheet row.
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "audit"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "audit log",
				slog.String("event_type", "sheet_write"),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("content_type", strings.ToLower(r.Header.Get("Content-Type"))),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
