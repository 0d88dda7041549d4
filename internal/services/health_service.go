package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"fennixdash/pkg/contracts/domain"
)

// SheetProbe is the part of a sheets backend readiness needs.
type SheetProbe interface {
	Rows(ctx context.Context, sheet domain.SheetName) ([]domain.Row, error)
}

// HealthService provides health check functionality
type HealthService struct {
	version    string
	repoURL    string
	buildTime  string
	buildID    string
	backend    string
	probe      SheetProbe
	probeSheet domain.SheetName
	timeout    time.Duration
	startTime  time.Time
	logger     *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	Backend       string  `json:"backend"`
	GoVersion     string  `json:"go_version"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
}

// HealthOptions describes the sheets backend readiness is checked against.
type HealthOptions struct {
	Version    string
	RepoURL    string
	BuildTime  string
	BuildID    string
	Backend    string
	Probe      SheetProbe
	ProbeSheet domain.SheetName
	Timeout    time.Duration
}

// NewHealthService creates a health service. A nil Probe reports the sheets
// backend as not configured; an empty ProbeSheet skips the upstream read.
func NewHealthService(opts HealthOptions, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	logger.Info("HealthService initialized",
		slog.String("version", opts.Version),
		slog.String("backend", opts.Backend),
		slog.String("probe_sheet", string(opts.ProbeSheet)))

	return &HealthService{
		version:    opts.Version,
		repoURL:    opts.RepoURL,
		buildTime:  opts.BuildTime,
		buildID:    opts.BuildID,
		backend:    opts.Backend,
		probe:      opts.Probe,
		probeSheet: opts.ProbeSheet,
		timeout:    opts.Timeout,
		startTime:  time.Now(),
		logger:     logger.With(slog.String("component", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.Debug("HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether the sheets backend can serve reads.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"sheets": hs.checkSheetsHealth(ctx),
		},
	}

	for _, service := range status.Services {
		if service.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"repo_url":     hs.repoURL,
		"backend":      hs.backend,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}
	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	return SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		Backend:       hs.backend,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
}

// checkSheetsHealth reads the probe sheet under a short deadline.
func (hs *HealthService) checkSheetsHealth(ctx context.Context) ServiceHealth {
	if hs.probe == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: ErrBackendNotConfigured.Error(),
		}
	}
	if hs.probeSheet == "" {
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("%s backend configured", hs.backend),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, hs.timeout)
	defer cancel()

	start := time.Now()
	_, err := hs.probe.Rows(ctx, hs.probeSheet)
	latency := time.Since(start)
	if err != nil {
		hs.logger.WarnContext(ctx, "sheets readiness probe failed",
			slog.String("sheet", string(hs.probeSheet)),
			slog.String("error", err.Error()))
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("sheet %s unreadable: %v", hs.probeSheet, err),
			Latency: latency.String(),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%s backend is healthy", hs.backend),
		Latency: latency.String(),
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     hs.SystemStats(ctx),
	}
}
