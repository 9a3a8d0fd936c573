// Package retry decides whether a failed fetch attempt is retried and how
// long to wait before the retry.
package retry

import "time"

const (
	// DefaultMaxRetries is the number of automatic retries per fetch cycle.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the first step of the linear delay ramp.
	DefaultBaseDelay = 2 * time.Second
)

// Policy decides retry behavior for one fetch cycle.
type Policy interface {
	// NextDelay returns the delay before the next retry.
	// failures is the number of failed attempts so far in the cycle (1 after
	// the first failure). The boolean is false when the retry budget is spent
	// and the cycle must settle as a terminal failure.
	NextDelay(failures int) (time.Duration, bool)
}

// Linear retries up to MaxRetries times, waiting BaseDelay * n before the
// n-th retry. The ramp is not randomized and not capped.
type Linear struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxRetries is the maximum number of retries per cycle. Zero disables
	// retrying.
	MaxRetries int
}

// NewLinear creates a [Linear] policy.
func NewLinear(baseDelay time.Duration, maxRetries int) *Linear {
	return &Linear{BaseDelay: baseDelay, MaxRetries: maxRetries}
}

// NextDelay implements [Policy].
func (l *Linear) NextDelay(failures int) (time.Duration, bool) {
	if failures < 1 {
		failures = 1
	}
	if failures > l.MaxRetries {
		return 0, false
	}
	return l.BaseDelay * time.Duration(failures), true
}
