// Package shared holds code used across the dashboard packages that belongs
// to no single layer.
//
// The testutil subpackage provides a capturing slog handler, sheet row
// fixtures and a fake Apps Script endpoint for tests that exercise the
// fetch path end to end.
package shared
