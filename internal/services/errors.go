package services

import "errors"

// Dashboard service errors
var (
	ErrUnknownView = errors.New("unknown dashboard view")

	// Health errors
	ErrBackendNotConfigured = errors.New("sheets backend not configured")
)
