// Package app wires the dashboard backend together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, YAML file, FENNIX_* environment)
//  2. Initialize logging and OpenTelemetry
//  3. Build the sheets backend (Apps Script web app or Sheets API)
//  4. Build the lenient fetcher, the dashboard and health services and the exporter
//  5. Set up HTTP handlers and middleware
//  6. Start the HTTP server
//
// # Usage
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM: in-flight requests are drained within the
// configured shutdown timeout and telemetry providers are flushed.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
