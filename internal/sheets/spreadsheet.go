package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	apperrors "fennixdash/internal/errors"
	"fennixdash/pkg/contracts/domain"
)

// SpreadsheetConfig configures the Sheets API backend.
type SpreadsheetConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	// CredentialsJSON takes precedence over CredentialsFile when set.
	CredentialsJSON []byte
}

// SpreadsheetClient reads and appends through the Google Sheets v4 API with a
// service account. The first row of every tab holds the column names.
type SpreadsheetClient struct {
	srv           *gsheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSpreadsheetClient builds a client from a service-account key. Extra
// options are passed to the API client; when any are given the key is not
// read, which lets tests point the client at a local server.
func NewSpreadsheetClient(ctx context.Context, cfg SpreadsheetConfig, logger *slog.Logger, opts ...option.ClientOption) (*SpreadsheetClient, error) {
	if cfg.SpreadsheetID == "" {
		return nil, apperrors.NewConfigError("spreadsheet id is not set", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if len(opts) == 0 {
		creds := cfg.CredentialsJSON
		if len(creds) == 0 {
			if cfg.CredentialsFile == "" {
				return nil, apperrors.NewConfigError("service account credentials are not set", nil)
			}
			b, err := os.ReadFile(cfg.CredentialsFile)
			if err != nil {
				return nil, apperrors.NewConfigError("read service account credentials", err).
					WithContext("path", cfg.CredentialsFile)
			}
			creds = b
		}

		jwt, err := google.JWTConfigFromJSON(creds, gsheets.SpreadsheetsScope)
		if err != nil {
			return nil, apperrors.NewConfigError("parse service account credentials", err)
		}
		client := jwt.Client(ctx)
		client.Transport = otelhttp.NewTransport(client.Transport)
		opts = []option.ClientOption{option.WithHTTPClient(client)}
	}

	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewConfigError("create sheets service", err)
	}

	return &SpreadsheetClient{
		srv:           srv,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger.With(slog.String("component", "spreadsheet_client")),
	}, nil
}

// Rows reads a whole tab. Numbers arrive unformatted; dates arrive as the
// text shown in the sheet.
func (c *SpreadsheetClient) Rows(ctx context.Context, sheet domain.SheetName) ([]domain.Row, error) {
	if !sheet.Valid() {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%v: %q", domain.ErrUnknownSheet, sheet))
	}

	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, a1Sheet(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("fetch sheet %s", sheet), apiError(err)).
			WithContext("sheet", sheet.String())
	}
	return rowsFromValues(resp.Values), nil
}

// Append writes row under the tab's header, in header order. Keys the header
// does not name are ignored.
func (c *SpreadsheetClient) Append(ctx context.Context, sheet domain.SheetName, row domain.Row) (map[string]any, error) {
	if !sheet.Valid() {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%v: %q", domain.ErrUnknownSheet, sheet))
	}

	head, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, a1Sheet(sheet)+"!1:1").Context(ctx).Do()
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("read header of %s", sheet), apiError(err))
	}
	if len(head.Values) == 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("sheet %s has no header row", sheet), ErrUnexpectedShape)
	}

	values, unknown := valuesInHeaderOrder(head.Values[0], row)
	if len(unknown) > 0 {
		c.logger.WarnContext(ctx, "ignoring columns missing from sheet header",
			slog.String("sheet", sheet.String()),
			slog.Any("columns", unknown))
	}

	resp, err := c.srv.Spreadsheets.Values.Append(c.spreadsheetID, a1Sheet(sheet), &gsheets.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("append to sheet %s", sheet), apiError(err))
	}

	out := map[string]any{"status": "ok", "sheet": sheet.String()}
	if resp.Updates != nil {
		out["updatedRange"] = resp.Updates.UpdatedRange
		out["updatedRows"] = resp.Updates.UpdatedRows
	}
	return out, nil
}

// a1Sheet quotes a tab name for A1 notation.
func a1Sheet(sheet domain.SheetName) string {
	return "'" + strings.ReplaceAll(sheet.String(), "'", "''") + "'"
}

// rowsFromValues turns a header row plus data rows into records. Columns
// with a blank header and rows with no cells are skipped.
func rowsFromValues(values [][]any) []domain.Row {
	if len(values) == 0 {
		return []domain.Row{}
	}

	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = strings.TrimSpace(fmt.Sprint(h))
	}

	rows := make([]domain.Row, 0, len(values)-1)
	for _, cells := range values[1:] {
		if len(cells) == 0 {
			continue
		}
		row := make(domain.Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func valuesInHeaderOrder(header []any, row domain.Row) ([]any, []string) {
	known := make(map[string]bool, len(header))
	values := make([]any, len(header))
	for i, h := range header {
		name := strings.TrimSpace(fmt.Sprint(h))
		known[name] = true
		if v, ok := row[name]; ok && v != nil {
			values[i] = v
		} else {
			values[i] = ""
		}
	}

	var unknown []string
	for k := range row {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return values, unknown
}

// apiError keeps the API's status code visible to errors.Is(err,
// ErrUpstreamStatus).
func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &StatusError{Code: gerr.Code, Body: gerr.Message}
	}
	return err
}
