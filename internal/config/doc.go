// Package config loads the dashboard configuration.
//
// # Configuration Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//	1. Defaults (Default)
//	2. A YAML file: FENNIX_CONFIG_FILE, or config.yaml / configs/config.yaml
//	3. Environment variables prefixed with FENNIX_
//
// A .env file can seed the environment first through LoadEnvFiles.
//
// # Environment Variables
//
// Nested sections join their names with underscores:
//
//	FENNIX_SERVER_PORT=8080
//	FENNIX_SHEETS_BACKEND=apps_script
//	FENNIX_SHEETS_BASE_URL=https://script.google.com/macros/s/<id>/exec
//	FENNIX_SHEETS_SPREADSHEET_ID=1AbC...
//	FENNIX_DASHBOARD_TOP_N=10
//	FENNIX_LOGGING_LEVEL=debug
//
// # Validation
//
// Load rejects configurations the server cannot run with: a bad port, a
// missing Apps Script URL or spreadsheet id for the selected backend, an
// unparseable locale. Logging is normalized to JSON output.
package config
