package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fennixdash/internal/exporter"
	mw "fennixdash/internal/middleware"
	"fennixdash/internal/sheets"
	"fennixdash/pkg/contracts/domain"
)

const isoDate = "2006-01-02"

func newSheetsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List the sheet names the backend serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range domain.SheetNameStrings() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newFetchCmd(c *cli) *cobra.Command {
	var (
		outPath string
		asJSON  bool
		lenient bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <sheet>",
		Short: "Dump one sheet as CSV (or JSON)",
		Long: `Reads a sheet through the configured backend.

By default any upstream failure is an error. With --lenient a failed read
prints an empty sheet instead, the way dashboard views treat it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := domain.ParseSheetName(args[0])
			if err != nil {
				return err
			}

			src, err := c.source(ctx)
			if err != nil {
				return err
			}

			var rows []domain.Row
			if lenient {
				rows = sheets.FetchSheet(ctx, src, sheet, c.logger)
			} else if rows, err = src.Rows(ctx, sheet); err != nil {
				return fmt.Errorf("read %s: %w", sheet, err)
			}
			c.logger.InfoContext(ctx, "sheet fetched",
				slog.String("sheet", sheet.String()),
				slog.Int("rows", len(rows)))

			if asJSON {
				if rows == nil {
					rows = []domain.Row{}
				}
				return writeJSON(cmd.OutOrStdout(), domain.SheetRowsResponse{Sheet: sheet, Rows: rows})
			}
			if outPath != "" {
				return writeRowsFile(outPath, rows, c.logger)
			}
			return exporter.New(nil, c.logger).WriteRowsCSV(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write CSV to this file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the rows envelope as JSON")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "print an empty sheet instead of failing")
	return cmd
}

// writeRowsFile streams rows to path one record at a time.
func writeRowsFile(path string, rows []domain.Row, logger *slog.Logger) error {
	cols := exporter.RowColumns(rows)
	sw, err := exporter.NewCSVWriter("", logger).CreateStreamWriter(path, cols)
	if err != nil {
		return err
	}
	for _, record := range exporter.RowRecords(rows, cols) {
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return err
		}
	}
	return sw.Close()
}

func newAppendCmd(c *cli) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:     "append <sheet>",
		Short:   "Append one row to a sheet",
		Example: `  fennixctl append Ventas --set ID_Venta=V-120 --set Valor_Venta=85000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			req := domain.AppendRowRequest{Sheet: args[0], Row: map[string]any{}}
			for _, f := range fields {
				key, value, ok := strings.Cut(f, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("--set %q: want column=value", f)
				}
				req.Row[strings.TrimSpace(key)] = value
			}
			if err := mw.NewValidator(c.logger).ValidateStruct(req); err != nil {
				return err
			}

			src, err := c.source(ctx)
			if err != nil {
				return err
			}
			result, err := src.Append(ctx, domain.SheetName(req.Sheet), domain.Row(req.Row))
			if err != nil {
				return fmt.Errorf("append to %s: %w", req.Sheet, err)
			}
			c.logger.InfoContext(ctx, "row appended",
				slog.String("sheet", req.Sheet),
				slog.Int("fields", len(req.Row)))
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringArrayVar(&fields, "set", nil, "column=value, repeatable")
	return cmd
}

// rangeFlags are the --from/--to flags shared by view and export.
type rangeFlags struct {
	from string
	to   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first day included, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last day included, YYYY-MM-DD")
}

func (f *rangeFlags) parse() (domain.DateRange, error) {
	var rng domain.DateRange
	var err error
	if f.from != "" {
		if rng.From, err = time.ParseInLocation(isoDate, f.from, time.UTC); err != nil {
			return rng, fmt.Errorf("--from: %w", err)
		}
	}
	if f.to != "" {
		if rng.To, err = time.ParseInLocation(isoDate, f.to, time.UTC); err != nil {
			return rng, fmt.Errorf("--to: %w", err)
		}
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return rng, fmt.Errorf("--to %s is before --from %s", f.to, f.from)
	}
	return rng, nil
}

func parseView(raw string) (domain.ViewName, error) {
	view := domain.ViewName(strings.ToLower(strings.TrimSpace(raw)))
	if !view.Valid() {
		return "", fmt.Errorf("unknown view %q (want one of %v)", raw, domain.AllViews())
	}
	return view, nil
}

func newViewCmd(c *cli) *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "view <overview|sales|campaigns|cards>",
		Short: "Print a KPI view as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, err := parseView(args[0])
			if err != nil {
				return err
			}
			rng, err := rf.parse()
			if err != nil {
				return err
			}

			dash, err := c.dashboard(ctx)
			if err != nil {
				return err
			}
			view, err := dash.View(ctx, name, rng)
			if err != nil {
				return err
			}
			if view.Degraded() {
				c.logger.WarnContext(ctx, "view built with unreadable sheets", slog.String("view", string(name)))
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}

	rf.register(cmd)
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	var (
		rf      rangeFlags
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export <overview|sales|campaigns|cards>",
		Short: "Write a KPI view as an XLSX or CSV file",
		Long: `Writes the same file the dashboard download button serves. Without
--out the file is named fennix_<view>_<date>.<format> in the working
directory; --out - writes to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, err := parseView(args[0])
			if err != nil {
				return err
			}
			f, err := exporter.ParseFormat(format)
			if err != nil {
				return err
			}
			rng, err := rf.parse()
			if err != nil {
				return err
			}

			dash, err := c.dashboard(ctx)
			if err != nil {
				return err
			}
			view, err := dash.View(ctx, name, rng)
			if err != nil {
				return err
			}

			exp := c.exporter(dash)
			if outPath == "-" {
				return exp.Export(cmd.OutOrStdout(), view, f)
			}
			if outPath == "" {
				outPath = exporter.Filename(name, f, time.Now())
			}

			file, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			if err := exp.Export(file, view, f); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			c.logger.InfoContext(ctx, "view exported",
				slog.String("view", string(name)),
				slog.String("format", string(f)),
				slog.String("path", outPath))
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", string(exporter.FormatXLSX), "xlsx or csv")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, - for stdout")
	return cmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
