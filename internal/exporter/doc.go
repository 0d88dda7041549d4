// Package exporter writes dashboard views and raw sheet rows to CSV and
// XLSX.
//
// CSV output carries a UTF-8 BOM so spreadsheet programs pick the right
// encoding for the Spanish labels. XLSX workbooks are built with excelize,
// one worksheet for the KPI tiles, one per chart series and one for the
// view's table.
//
// Example usage:
//
//	exp := exporter.New(dashboard.Formatter(), logger)
//	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
//	err = exp.Export(w, view, format)
package exporter
