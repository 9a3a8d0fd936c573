package creditpulse

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpalmerr/creditpulse/internal/poller"
)

var (
	// ErrNotSubscribed is returned by [Synchronizer.Refetch] when no consumer
	// holds a subscription.
	ErrNotSubscribed = errors.New("synchronizer has no subscribers")

	// ErrClosed is returned by [Synchronizer.Subscribe] after [Synchronizer.Close].
	ErrClosed = errors.New("synchronizer is closed")

	// ErrCancelled marks the result of a superseded request. It is used
	// internally to drop late results and is never exposed through [State].
	ErrCancelled = errors.New("request superseded")
)

// TransportError is a network or HTTP failure reported by the [Fetcher].
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError is a payload that failed the [Validator].
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TimeoutError is a fetch that did not settle within the fetch timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.After)
}

// ErrorKind classifies err as "transport", "validation", "timeout", or
// "unknown". It returns an empty string for a nil error.
func ErrorKind(err error) string {
	var (
		transport  *TransportError
		validation *ValidationError
		timeout    *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &transport):
		return "transport"
	default:
		return "unknown"
	}
}

// classify wraps a raw fetch error into the error taxonomy. Errors that are
// already classified pass through unchanged. A body that arrived but could
// not be decoded counts as a validation failure.
func classify(err error) error {
	var (
		transport  *TransportError
		validation *ValidationError
		timeout    *TimeoutError
		decode     *poller.DecodeError
	)
	if errors.Is(err, ErrCancelled) || errors.As(err, &transport) ||
		errors.As(err, &validation) || errors.As(err, &timeout) {
		return err
	}
	if errors.As(err, &decode) {
		return &ValidationError{Err: err}
	}
	return &TransportError{Err: err}
}
