package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// TransientError marks an infrastructure failure expected to self-heal on
// retry: rate limiting, timeouts, temporary unavailability.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient inference failure: %v", e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is retryable infrastructure failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrEmptyCandidate indicates the capability returned no usable payload.
// Treated as malformed output, not infrastructure failure.
var ErrEmptyCandidate = errors.New("inference returned no candidate content")

// classifyError wraps retryable upstream failures in TransientError and
// passes everything else through untouched.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Cause: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return &TransientError{Cause: err}
		}
	}
	return err
}
