package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apierrors "fennixdash/internal/errors"
	"fennixdash/internal/infrastructure"
	"fennixdash/internal/shared/testutil"
	"fennixdash/pkg/contracts/domain"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestRequestID(t *testing.T) {
	var seen, traced string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
		traced = infrastructure.GetTraceID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, traced)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set(RequestIDHeader, "upstream-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-42", seen)
		assert.Equal(t, "upstream-42", rec.Header().Get(RequestIDHeader))
	})

	t.Run("oversized header replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

func TestGetRequestID_FallsBackToTraceID(t *testing.T) {
	ctx := infrastructure.WithTraceID(context.Background(), "trace-1")
	assert.Equal(t, "trace-1", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("hello"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "request completed")
	testutil.AssertLogContains(t, logs, slog.LevelError, "request completed")
	assert.True(t, logs.ContainsAttr("status", int64(502)))
	assert.True(t, logs.ContainsAttr("bytes", int64(5)))
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(1, 2, logger)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Handler(okHandler)
	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/overview", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5001").Code)

	rec := call("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeRateLimit, problem["type"])
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))

	assert.Equal(t, http.StatusOK, call("10.0.0.2:5000").Code, "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5003").Code, "bucket refills")
}

func TestRateLimiter_PrunesIdleClients(t *testing.T) {
	rl := NewRateLimiter(10, 10, slog.Default())
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(rl.idleTTL + time.Minute)
	rl.Allow("b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "b")
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(20))
	assert.Equal(t, 5, retryAfterSeconds(0.25))
	assert.Equal(t, 1, retryAfterSeconds(0))
}

func TestTimeout(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	var deadline time.Time
	h := Timeout(10*time.Millisecond, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
		<-r.Context().Done()
		w.WriteHeader(http.StatusGatewayTimeout)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.False(t, deadline.IsZero())
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.True(t, logs.ContainsMessage("request timeout"))
}

func TestMaxBodyBytes(t *testing.T) {
	v := NewValidator(slog.Default())
	h := MaxBodyBytes(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.AppendRowRequest
		err := v.DecodeJSON(r, &req)
		apiErr, ok := err.(*apierrors.APIError)
		require.True(t, ok)
		w.WriteHeader(apiErr.StatusCode)
	}))

	rec := httptest.NewRecorder()
	body := `{"sheet":"Ventas","row":{"Producto":"Lámpara de sal grande"}}`
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sheets", strings.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://dash.fennix.co"}})(okHandler)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sheets?sheet=Ventas", nil)
		req.Header.Set("Origin", "https://dash.fennix.co")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "https://dash.fennix.co", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sheets?sheet=Ventas", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/sheets", nil)
		req.Header.Set("Origin", "https://dash.fennix.co")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	DefaultSecureHeaders().Handler(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "plain HTTP gets no HSTS")

	dev := DefaultSecureHeaders()
	dev.DevMode = true
	rec = httptest.NewRecorder()
	dev.Handler(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestAuditLog(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := AuditLog(logger)(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sheets?sheet=Ventas", nil))
	assert.False(t, logs.ContainsMessage("audit log"), "reads are not audited")

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/sheets", strings.NewReader("{}")))
	assert.True(t, logs.ContainsMessage("audit log"))
	assert.True(t, logs.ContainsAttr("event_type", "sheet_write"))
}

func TestOTelMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	metrics, err := infrastructure.CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)

	om := NewOTelMiddleware(tp.Tracer("test"), metrics, slog.Default())
	r := chi.NewRouter()
	r.Use(RequestID, om.Handler)
	r.Get("/api/dashboard/{view}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/sales", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET /api/dashboard/{view}", ended[0].Name())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var routes []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				if v, ok := dp.Attributes.Value("route"); ok {
					routes = append(routes, v.AsString())
				}
			}
		}
	}
	assert.Equal(t, []string{"/api/dashboard/{view}"}, routes)
}

func TestBusinessMetricsContext(t *testing.T) {
	assert.Nil(t, BusinessMetricsFromContext(context.Background()))

	metrics := &infrastructure.BusinessMetrics{}
	var got *infrastructure.BusinessMetrics
	WithBusinessMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = BusinessMetricsFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Same(t, metrics, got)
}
