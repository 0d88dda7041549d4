// Package http implements the HTTP handlers of the dashboard API. Handlers
// stay thin: they parse and validate the request, call a service and render
// the result with go-chi/render. Every failure goes through
// errors.ErrorHandler so clients always receive RFC 7807 problem details.
//
// Routes mounted by the app package:
//
//	GET  /api/sheets?sheet=<name>         proxied read, {"sheet","rows"}
//	POST /api/sheets                      proxied append, {"sheet","row"}
//	GET  /api/sheets/names                known sheet names
//	GET  /api/dashboard                   known views
//	GET  /api/dashboard/{view}            KPI view, ?from=&to= (YYYY-MM-DD)
//	GET  /api/dashboard/{view}/export     download, ?format=xlsx|csv
//	GET  /api/health[/ready|/live|/detailed], /api/version
//
// Upstream failures on the proxied routes answer 502; views never fail on an
// unreadable sheet and report it in their sources list instead.
package http
