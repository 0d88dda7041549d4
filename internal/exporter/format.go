package exporter

import (
	"fmt"
	"strings"
	"time"

	"fennixdash/pkg/contracts/domain"
)

// Format is a download format for a dashboard view.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv or xlsx, case-insensitively. An empty string means xlsx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType is the media type sent with a download.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename names a download after the view and the day it was generated,
// e.g. fennix_overview_2024-03-01.xlsx.
func Filename(view domain.ViewName, f Format, at time.Time) string {
	return fmt.Sprintf("fennix_%s_%s.%s", view, at.Format("2006-01-02"), f)
}

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
