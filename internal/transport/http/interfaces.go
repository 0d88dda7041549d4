package http

import (
	"context"
	"io"

	"fennixdash/internal/exporter"
	"fennixdash/internal/services"
	"fennixdash/pkg/contracts/domain"
)

// SheetsBackend is the spreadsheet the proxy routes forward to.
type SheetsBackend interface {
	Rows(ctx context.Context, sheet domain.SheetName) ([]domain.Row, error)
	Append(ctx context.Context, sheet domain.SheetName, row domain.Row) (map[string]any, error)
}

// DashboardServiceInterface builds KPI views.
type DashboardServiceInterface interface {
	View(ctx context.Context, name domain.ViewName, r domain.DateRange) (*domain.DashboardView, error)
}

// ViewExporter renders a built view as a downloadable file.
type ViewExporter interface {
	Export(out io.Writer, view *domain.DashboardView, f exporter.Format) error
}

// HealthServiceInterface reports process and backend health.
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
	GetDetailedHealth(ctx context.Context) map[string]interface{}
}
