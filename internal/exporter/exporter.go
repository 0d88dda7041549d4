package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"fennixdash/internal/dataprocessing"
	"fennixdash/pkg/contracts/domain"
)

const (
	kpiSheet     = "Indicadores"
	tableSheet   = "Tabla"
	sourcesSheet = "Fuentes"

	// excelize rejects worksheet names longer than this.
	maxSheetName = 31
)

var (
	kpiHeader    = []string{"Indicador", "Valor", "Formato", "Advertencia"}
	seriesHeader = []string{"Etiqueta", "Total", "Participación %"}
	sourceHeader = []string{"Hoja", "Filas", "Mensaje"}
)

// Exporter renders dashboard views for download.
type Exporter struct {
	formatter *dataprocessing.Formatter
	logger    *slog.Logger
}

// New creates an exporter. A nil formatter uses the default locale.
func New(formatter *dataprocessing.Formatter, logger *slog.Logger) *Exporter {
	if formatter == nil {
		formatter = dataprocessing.NewFormatter(dataprocessing.DefaultLocale)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		formatter: formatter,
		logger:    logger.With(slog.String("component", "exporter")),
	}
}

// Export writes view to out in format f.
func (e *Exporter) Export(out io.Writer, view *domain.DashboardView, f Format) error {
	if view == nil {
		return fmt.Errorf("export: nil view")
	}

	var err error
	switch f {
	case FormatCSV:
		err = e.WriteViewCSV(out, view)
	case FormatXLSX:
		err = e.WriteViewXLSX(out, view)
	default:
		err = fmt.Errorf("unsupported export format %q", f)
	}
	if err != nil {
		return err
	}

	e.logger.Debug("view exported",
		slog.String("view", string(view.View)),
		slog.String("format", string(f)))
	return nil
}

// WriteViewCSV writes the view as consecutive CSV blocks separated by blank
// lines: header, KPI tiles, each series in page order, the table and the
// source notices.
func (e *Exporter) WriteViewCSV(out io.Writer, view *domain.DashboardView) error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"Vista", string(view.View)},
		{"Generado", view.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Desde", formatDate(view.Range.From), "Hasta", formatDate(view.Range.To)},
		{},
		kpiHeader,
	}
	records = append(records, e.kpiRecords(view)...)

	for _, name := range view.SeriesOrder {
		records = append(records, []string{}, []string{name})
		records = append(records, seriesHeader)
		records = append(records, seriesRecords(view.Series[name])...)
	}

	if view.Table != nil {
		records = append(records, []string{}, []string{view.Table.Title}, view.Table.Columns)
		records = append(records, view.Table.Records()...)
	}

	records = append(records, []string{}, sourceHeader)
	records = append(records, sourceRecords(view.Sources)...)

	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write view csv: %w", err)
	}
	_, err := out.Write(buf.Bytes())
	return err
}

// WriteRowsCSV writes raw sheet rows with every column they carry.
func (e *Exporter) WriteRowsCSV(out io.Writer, rows []domain.Row) error {
	cols := RowColumns(rows)
	return WriteRecords(out, cols, RowRecords(rows, cols), true)
}

// WriteViewXLSX writes the view as a workbook.
func (e *Exporter) WriteViewXLSX(out io.Writer, view *domain.DashboardView) error {
	f, err := e.Workbook(view)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Workbook builds the XLSX workbook for view. Callers must Close it.
func (e *Exporter) Workbook(view *domain.DashboardView) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	wb := &workbook{file: f, header: bold}

	if err := f.SetSheetName("Sheet1", kpiSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	kpiRows := make([][]any, 0, len(view.Kpis))
	for _, k := range view.Kpis {
		kpiRows = append(kpiRows, []any{k.Label, k.Value, k.Formatted, k.Warning})
	}
	wb.sheet(kpiSheet, kpiHeader, kpiRows)

	for _, name := range view.SeriesOrder {
		rows := make([][]any, 0, len(view.Series[name]))
		for _, p := range view.Series[name] {
			rows = append(rows, []any{p.Label, p.Total, dataprocessing.Round2(p.Share)})
		}
		wb.sheet(sheetName(name), seriesHeader, rows)
	}

	if view.Table != nil {
		rows := make([][]any, 0, len(view.Table.Rows))
		for _, r := range view.Table.Rows {
			cells := make([]any, len(view.Table.Columns))
			for i, col := range view.Table.Columns {
				cells[i] = cellValue(r, col)
			}
			rows = append(rows, cells)
		}
		wb.sheet(tableSheet, view.Table.Columns, rows)
	}

	sourceRows := make([][]any, 0, len(view.Sources))
	for _, s := range view.Sources {
		sourceRows = append(sourceRows, []any{string(s.Sheet), s.Rows, s.Message})
	}
	wb.sheet(sourcesSheet, sourceHeader, sourceRows)

	if wb.err != nil {
		f.Close()
		return nil, wb.err
	}
	return f, nil
}

// workbook accumulates the first error so sheet writes read straight through.
type workbook struct {
	file   *excelize.File
	header int
	err    error
}

func (wb *workbook) sheet(name string, header []string, rows [][]any) {
	if wb.err != nil {
		return
	}
	f := wb.file
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			wb.err = fmt.Errorf("failed to add sheet %s: %w", name, err)
			return
		}
	}

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &head); err != nil {
		wb.err = fmt.Errorf("failed to write %s header: %w", name, err)
		return
	}
	if len(header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(name, "A1", last, wb.header); err != nil {
			wb.err = fmt.Errorf("failed to style %s header: %w", name, err)
			return
		}
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			wb.err = fmt.Errorf("failed to write %s row %d: %w", name, i+1, err)
			return
		}
	}
	_ = f.SetColWidth(name, "A", "A", 32)
}

func (e *Exporter) kpiRecords(view *domain.DashboardView) [][]string {
	out := make([][]string, 0, len(view.Kpis))
	for _, k := range view.Kpis {
		formatted := k.Formatted
		if formatted == "" {
			formatted = e.formatter.Value(k.Value, k.Currency, k.Unit)
		}
		out = append(out, []string{k.Label, formatFloat(k.Value), formatted, k.Warning})
	}
	return out
}

func seriesRecords(s domain.Series) [][]string {
	out := make([][]string, 0, len(s))
	for _, p := range s {
		out = append(out, []string{p.Label, formatFloat(p.Total), formatFloat(p.Share)})
	}
	return out
}

func sourceRecords(sources []domain.SourceNotice) [][]string {
	out := make([][]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, []string{string(s.Sheet), fmt.Sprint(s.Rows), s.Message})
	}
	return out
}

// cellValue keeps numbers numeric so the workbook can sum them.
func cellValue(r domain.Row, col string) any {
	switch v := r.Get(col).(type) {
	case nil:
		return ""
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case float64, float32, int, int64, int32:
		return v
	default:
		return r.Text(col)
	}
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
