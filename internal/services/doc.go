// Package services implements the business layer of the dashboard. Handlers
// and the CLI call into it; it reads spreadsheet rows through the sheets
// package and turns them into KPI views.
//
// # Available Services
//
//	- DashboardService: builds the overview, sales, campaigns and cards views
//	- HealthService: liveness, readiness and version information
//
// # Degradation
//
// Views never fail because a sheet could not be read. Each sheet a view
// needs is fetched concurrently; a failed sheet contributes no rows and a
// SourceNotice explaining why, so the page still renders with zeros.
//
// # Testing
//
// Services are tested against an httptest stand-in for the Apps Script
// endpoint (testutil.FakeAppsScript) or a stub RowFetcher:
//
//	fake := testutil.NewFakeAppsScript(t)
//	fake.SetRows(domain.SheetVentas, testutil.SalesRows())
//	svc := NewDashboardService(fetcherFor(t, fake), DefaultDashboardOptions(), logger)
//	view := svc.Overview(ctx, domain.DateRange{})
package services
