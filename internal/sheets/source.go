package sheets

import (
	"context"

	"fennixdash/pkg/contracts/domain"
)

// Source is a spreadsheet backend. Rows is strict: it reports every transport,
// status and shape failure. FetchSheet is the lenient wrapper views use.
type Source interface {
	Rows(ctx context.Context, sheet domain.SheetName) ([]domain.Row, error)
	Append(ctx context.Context, sheet domain.SheetName, row domain.Row) (map[string]any, error)
}

// Backend names accepted in configuration.
const (
	BackendAppsScript = "apps_script"
	BackendSheetsAPI  = "sheets_api"
)
