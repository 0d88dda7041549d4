package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"fennixdash/internal/app"
	"fennixdash/internal/config"
	"fennixdash/internal/exporter"
	"fennixdash/internal/infrastructure"
	"fennixdash/internal/services"
	"fennixdash/internal/sheets"
	"fennixdash/pkg/contracts"
)

// cli holds what every subcommand needs once the root has loaded config.
type cli struct {
	configPath string
	envFiles   []string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "fennixctl",
		Short: "Inspect the Fennix Emporium spreadsheet and KPI views",
		Long: `fennixctl talks to the same sheets backend as the dashboard server.

Configuration is read the same way: defaults, then the YAML file, then
FENNIX_* environment variables.`,
		Version:       contracts.GetVersionString(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: search config.yaml, configs/config.yaml)")
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", []string{".env"}, ".env files to load before reading config")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		newSheetsCmd(c),
		newFetchCmd(c),
		newAppendCmd(c),
		newViewCmd(c),
		newExportCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(c.envFiles...); err != nil {
		return err
	}

	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFrom(c.configPath)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logCfg := c.cfg.Logging
	if c.verbose {
		logCfg.Level = "debug"
	}
	c.logger = infrastructure.NewLogger(logCfg, cmd.ErrOrStderr()).
		With(slog.String("component", "fennixctl"), slog.String("command", cmd.Name()))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, traceID := infrastructure.EnsureTraceID(ctx)
	cmd.SetContext(ctx)
	c.logger.DebugContext(ctx, "configuration loaded",
		slog.String("backend", c.cfg.Sheets.Backend),
		slog.String("trace_id", traceID))
	return nil
}

func (c *cli) source(ctx context.Context) (sheets.Source, error) {
	src, err := app.NewSource(ctx, c.cfg.Sheets, c.logger)
	if err != nil {
		return nil, fmt.Errorf("sheets backend: %w", err)
	}
	return src, nil
}

func (c *cli) dashboard(ctx context.Context) (*services.DashboardService, error) {
	src, err := c.source(ctx)
	if err != nil {
		return nil, err
	}
	fetcher := sheets.NewFetcher(src, c.logger, nil)
	return services.NewDashboardService(fetcher, app.NewDashboardOptions(c.cfg.Dashboard), c.logger), nil
}

func (c *cli) exporter(dash *services.DashboardService) *exporter.Exporter {
	return exporter.New(dash.Formatter(), c.logger)
}
