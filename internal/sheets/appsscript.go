package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apperrors "fennixdash/internal/errors"
	"fennixdash/pkg/contracts/domain"
)

// ClientConfig configures an AppsScriptClient. It is passed explicitly so
// tests and tools can point at any endpoint.
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// DefaultClientConfig returns the limits used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      15 * time.Second,
		UserAgent:    "fennixdash/1.0",
		MaxBodyBytes: 16 << 20,
	}
}

// AppsScriptClient talks to the Apps Script web app that fronts the
// workbook: GET ?sheet=<name>&action=getSheet reads a tab and
// POST ?action=appendRow adds one.
type AppsScriptClient struct {
	cfg    ClientConfig
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option customizes an AppsScriptClient.
type Option func(*AppsScriptClient)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *AppsScriptClient) { a.http = c }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *AppsScriptClient) { a.logger = l }
}

// NewAppsScriptClient validates cfg and builds a client.
func NewAppsScriptClient(cfg ClientConfig, opts ...Option) (*AppsScriptClient, error) {
	defaults := DefaultClientConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, apperrors.NewConfigError("apps script base URL is not set", nil)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.NewConfigError(fmt.Sprintf("invalid apps script base URL %q", cfg.BaseURL), err)
	}

	c := &AppsScriptClient{
		cfg:    cfg,
		base:   base,
		logger: slog.Default(),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "apps_script_client"))
	return c, nil
}

// Rows reads one tab.
func (c *AppsScriptClient) Rows(ctx context.Context, sheet domain.SheetName) ([]domain.Row, error) {
	if !sheet.Valid() {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%v: %q", domain.ErrUnknownSheet, sheet))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(url.Values{
		"sheet":  {sheet.String()},
		"action": {"getSheet"},
	}), nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("build sheet request", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("fetch sheet %s", sheet), err).
			WithContext("sheet", sheet.String())
	}

	rows, err := Unwrap(body)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("decode sheet %s", sheet), err).
			WithContext("sheet", sheet.String())
	}
	return rows, nil
}

// Append relays one row. The backend's JSON answer is returned as is; a
// non-object answer is wrapped under "result".
func (c *AppsScriptClient) Append(ctx context.Context, sheet domain.SheetName, row domain.Row) (map[string]any, error) {
	if !sheet.Valid() {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%v: %q", domain.ErrUnknownSheet, sheet))
	}

	payload, err := json.Marshal(map[string]any{"sheet": sheet, "row": row})
	if err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("row cannot be encoded: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(url.Values{
		"action": {"appendRow"},
	}), bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewNetworkError("build append request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("append to sheet %s", sheet), err).
			WithContext("sheet", sheet.String())
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	var result any
	if err := decode(body, &result); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("decode append answer for %s", sheet), err)
	}
	if obj, ok := result.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"result": result}, nil
}

// endpoint merges query into the base URL, keeping any query the deployment
// URL already carries.
func (c *AppsScriptClient) endpoint(query url.Values) string {
	u := *c.base
	q := u.Query()
	for k, v := range query {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *AppsScriptClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.logger.DebugContext(req.Context(), "apps script response",
		slog.String("method", req.Method),
		slog.String("action", req.URL.Query().Get("action")),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", c.cfg.MaxBodyBytes)
	}
	return body, nil
}
