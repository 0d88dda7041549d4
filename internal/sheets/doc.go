// Package sheets reads and appends rows of the Fennix workbook.
//
// Two backends implement Source: AppsScriptClient, which calls the Apps
// Script web app deployed on the workbook, and SpreadsheetClient, which uses
// the Sheets v4 API with a service account. Both are strict and return typed
// errors (StatusError, ErrUnexpectedShape) wrapped in AppError.
//
// Dashboards read through Fetcher, which never fails: a broken sheet yields
// an empty slice plus a SourceNotice, a warning log and a sheet_fetch_total
// sample labelled with the outcome.
package sheets
