package sheets

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUpstreamStatus matches any StatusError with errors.Is.
	ErrUpstreamStatus = errors.New("upstream returned a non-success status")
	// ErrUnexpectedShape is returned when a body is neither {"rows":[...]}
	// nor a bare array.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// maxErrorBody bounds how much of a failing response is kept for diagnostics.
const maxErrorBody = 4 << 10

// StatusError carries a non-2xx answer from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Code, body)
}

// Is lets errors.Is(err, ErrUpstreamStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrUpstreamStatus
}

// Outcome labels a fetch for logs and metrics.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeStatus    Outcome = "status_error"
	OutcomeShape     Outcome = "shape_error"
	OutcomeTransport Outcome = "transport_error"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeInvalid   Outcome = "invalid_sheet"
)
