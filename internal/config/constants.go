package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "fennixdash"
	AppVersion = "1.0.0"
	AppVendor  = "Fennix Emporium"

	// EnvPrefix namespaces every environment variable, e.g. FENNIX_SERVER_PORT.
	EnvPrefix = "FENNIX"

	// Sheets backends
	BackendAppsScript = "apps_script"
	BackendSheetsAPI  = "sheets_api"

	// Rate Limiting
	DefaultRateLimit = 20 // requests per second per client
	DefaultBurstSize = 40

	// Network Timeouts
	DefaultSheetsTimeout  = 15 * time.Second
	DefaultRequestTimeout = 30 * time.Second

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogFile   = "logs/fennixdash.log"

	// API Endpoints
	APIBasePath       = "/api"
	SheetsEndpoint    = "/api/sheets"
	DashboardEndpoint = "/api/dashboard"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
)
