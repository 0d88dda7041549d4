package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"fennixdash/internal/config"
	apierrors "fennixdash/internal/errors"
	"fennixdash/internal/exporter"
	"fennixdash/internal/infrastructure"
	customMiddleware "fennixdash/internal/middleware"
	"fennixdash/internal/services"
	"fennixdash/internal/sheets"
	handlers "fennixdash/internal/transport/http"
	"fennixdash/pkg/contracts"
	"fennixdash/pkg/contracts/domain"
)

// AppName is the human readable name used in startup logs.
const AppName = "Fennix Emporium dashboard"

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Router          chi.Router
	Server          *http.Server
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	BusinessMetrics *infrastructure.BusinessMetrics
	Services        *ServiceContainer

	errorHandler *apierrors.ErrorHandler
	validator    *customMiddleware.Validator
}

// ServiceContainer holds the wired services the handlers depend on.
type ServiceContainer struct {
	Source    sheets.Source
	Fetcher   *sheets.Fetcher
	Dashboard *services.DashboardService
	Health    *services.HealthService
	Exporter  *exporter.Exporter
}

// NewApplication loads configuration, initializes the global logger and
// wires the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewApplicationWithConfig(cfg, logger)
}

// NewApplicationWithConfig wires the application from an already loaded
// configuration. Tests and tools use it to supply their own logger.
func NewApplicationWithConfig(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	otelProviders, err := infrastructure.InitializeOTel(
		infrastructure.OTelConfigFrom(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(otelProviders.MeterOrNoop())
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:          cfg,
		Logger:          logger,
		OTelProviders:   otelProviders,
		BusinessMetrics: businessMetrics,
		errorHandler:    apierrors.NewErrorHandler(logger, cfg.Logging.Development),
		validator:       customMiddleware.NewValidator(logger),
	}

	if err := app.initializeServices(context.Background()); err != nil {
		_ = otelProviders.Shutdown(context.Background())
		return nil, err
	}

	app.setupRouter()
	app.createServer()

	logger.Info("Application initialized",
		slog.String("backend", cfg.Sheets.Backend),
		slog.String("addr", cfg.Server.Addr()))
	return app, nil
}

// NewSource builds the configured spreadsheet backend.
func NewSource(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (sheets.Source, error) {
	switch cfg.Backend {
	case config.BackendSheetsAPI:
		return sheets.NewSpreadsheetClient(ctx, sheets.SpreadsheetConfig{
			SpreadsheetID:   cfg.SpreadsheetID,
			CredentialsFile: cfg.CredentialsFile,
			CredentialsJSON: []byte(cfg.CredentialsJSON),
		}, logger)
	case config.BackendAppsScript, "":
		return sheets.NewAppsScriptClient(sheets.ClientConfig{
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
			UserAgent:    cfg.UserAgent,
			MaxBodyBytes: cfg.MaxBodyBytes,
		}, sheets.WithLogger(logger))
	default:
		return nil, apierrors.NewConfigError(fmt.Sprintf("unknown sheets backend %q", cfg.Backend), nil)
	}
}

// NewDashboardOptions maps the dashboard config section onto service options.
func NewDashboardOptions(cfg config.DashboardConfig) services.DashboardOptions {
	return services.DashboardOptions{
		FallbackLabel: cfg.FallbackLabel,
		CardFallback:  cfg.CardFallback,
		TopN:          cfg.TopN,
		Locale:        cfg.Locale,
	}
}

// initializeServices creates the backend client and everything built on it.
func (a *Application) initializeServices(ctx context.Context) error {
	src, err := NewSource(ctx, a.Config.Sheets, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create sheets backend: %w", err)
	}

	fetchMetrics, err := sheets.NewMetrics(a.OTelProviders.MeterOrNoop())
	if err != nil {
		return fmt.Errorf("failed to create sheet metrics: %w", err)
	}
	fetcher := sheets.NewFetcher(src, a.Logger, fetchMetrics)

	dashboard := services.NewDashboardService(fetcher, NewDashboardOptions(a.Config.Dashboard), a.Logger)
	dashboard.SetObserver(a.BusinessMetrics)

	var probeSheet domain.SheetName
	if a.Config.Sheets.ProbeSheet != "" {
		probeSheet, err = domain.ParseSheetName(a.Config.Sheets.ProbeSheet)
		if err != nil {
			return apierrors.NewConfigError("invalid sheets probe_sheet", err)
		}
	}

	health := services.NewHealthService(services.HealthOptions{
		Version:    contracts.Version,
		BuildTime:  contracts.BuildTime,
		BuildID:    contracts.GitCommit,
		Backend:    a.Config.Sheets.Backend,
		Probe:      src,
		ProbeSheet: probeSheet,
		Timeout:    a.Config.Sheets.Timeout,
	}, a.Logger)

	a.Services = &ServiceContainer{
		Source:    src,
		Fetcher:   fetcher,
		Dashboard: dashboard,
		Health:    health,
		Exporter:  exporter.New(dashboard.Formatter(), a.Logger),
	}
	return nil
}

// setupRouter builds the middleware chain and mounts every route.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// Prometheus scrapes bypass tracing and rate limiting.
	if a.OTelProviders.PrometheusHTTP != nil && a.Config.Telemetry.MetricsPath != "" {
		r.Handle(a.Config.Telemetry.MetricsPath, a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		if a.OTelProviders.Tracer != nil {
			r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.BusinessMetrics, a.Logger).Handler)
		}
		r.Use(customMiddleware.WithBusinessMetrics(a.BusinessMetrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.errorHandler))

		secure := customMiddleware.DefaultSecureHeaders()
		secure.DevMode = a.Config.Logging.Development
		r.Use(secure.Handler)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.MaxBodyBytes(a.Config.Server.MaxBodyBytes))
		r.Use(customMiddleware.Compress(5))

		a.setupAPIRoutes(r)
	})

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		sheetsHandler := handlers.NewSheetsHandler(a.Services.Source, a.validator, a.Logger, a.errorHandler)
		// Failed writes are logged with their redacted body.
		r.With(apierrors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler).
			Mount("/sheets", sheetsHandler.Routes())

		dashboardHandler := handlers.NewDashboardHandler(a.Services.Dashboard, a.Services.Exporter, a.validator, a.Logger, a.errorHandler)
		r.Mount("/dashboard", dashboardHandler.Routes())
	})
}

// getCORSConfig returns CORS configuration for the configured origins
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server in the background. A listen failure cancels
// ctx through cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("addr", a.Server.Addr),
		slog.String("backend", a.Config.Sheets.Backend),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.BusinessMetrics.RecordSystemError(ctx, "listen")
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", "http://"+a.Server.Addr))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.RunContext(ctx)
}

// RunContext serves until ctx is done, then shuts down gracefully.
func (a *Application) RunContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	// The parent is already done; shutdown gets a fresh deadline.
	return a.Stop(context.Background())
}

// performStartupHealthCheck checks the sheets backend once so a bad
// deployment shows up in the first log lines. It never blocks startup.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	status := a.Services.Health.ReadinessCheck(ctx)
	for name, svc := range status.Services {
		if svc.Status != "ready" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", name, svc.Message))
		}
	}

	if a.Config.Telemetry.Enabled && a.OTelProviders.PrometheusHTTP == nil {
		warnings = append(warnings, "metrics endpoint is not available")
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.Router
}
