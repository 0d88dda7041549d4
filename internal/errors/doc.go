// Package errors carries the service's error vocabulary: AppError for
// failures inside the fetch and view layers, APIError for request-level
// failures, and an ErrorHandler that renders both as RFC 7807 problem
// details.
package errors
