package creditpulse

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/creditpulse/internal/retry"
)

const (
	// DefaultCacheTTL is how long a value stays fresh after a successful fetch.
	DefaultCacheTTL = 30 * time.Second

	// DefaultPollInterval is the period of background refreshes.
	DefaultPollInterval = 60 * time.Second

	// DefaultFetchTimeout bounds a single fetch attempt.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of automatic retries per fetch cycle.
	DefaultMaxRetries = retry.DefaultMaxRetries

	// DefaultRetryBaseDelay is the first step of the linear retry ramp.
	DefaultRetryBaseDelay = retry.DefaultBaseDelay
)

// RetryPolicy decides whether a failed attempt is retried within a fetch
// cycle and how long to wait first.
//
// failures counts the failed attempts of the cycle so far, starting at 1.
// Returning false settles the cycle as a terminal failure.
type RetryPolicy = retry.Policy

// syncConfig holds mutable state during Synchronizer construction.
type syncConfig struct {
	cacheTTL       time.Duration
	pollInterval   time.Duration
	fetchTimeout   time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	retryPolicy    RetryPolicy
	logger         *slog.Logger
	changeHooks    []func()
	now            func() time.Time
}

func defaultSyncConfig() *syncConfig {
	return &syncConfig{
		cacheTTL:       DefaultCacheTTL,
		pollInterval:   DefaultPollInterval,
		fetchTimeout:   DefaultFetchTimeout,
		maxRetries:     DefaultMaxRetries,
		retryBaseDelay: DefaultRetryBaseDelay,
		now:            time.Now,
	}
}

// Option configures a [Synchronizer] during construction.
//
// Options return an error if validation fails, which [NewSynchronizer]
// passes back to the caller.
type Option func(*syncConfig) error

// WithCacheTTL sets how long after a successful fetch the value is reported
// as fresh. Once the TTL elapses, [State.IsStale] becomes true.
// Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithCacheTTL(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("cache TTL must be positive")
		}
		cfg.cacheTTL = d
		return nil
	}
}

// WithPollInterval sets the period of background refreshes while at least
// one consumer is subscribed. Defaults to 60 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithFetchTimeout bounds each fetch attempt. An attempt that has not
// settled when the timeout fires fails with a [TimeoutError], whatever the
// fetcher does afterwards. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithMaxRetries sets how many automatic retries a fetch cycle gets before
// it settles as a terminal failure. Zero disables retries. Defaults to 3.
//
// Ignored when [WithRetryPolicy] is also given.
// Returns an error if n is negative.
func WithMaxRetries(n int) Option {
	return func(cfg *syncConfig) error {
		if n < 0 {
			return errors.New("max retries cannot be negative")
		}
		cfg.maxRetries = n
		return nil
	}
}

// WithRetryBaseDelay sets the first step of the linear retry ramp: the n-th
// retry waits n times this delay. Defaults to 2 seconds.
//
// Ignored when [WithRetryPolicy] is also given.
// Returns an error if the duration is zero or negative.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("retry base delay must be positive")
		}
		cfg.retryBaseDelay = d
		return nil
	}
}

// WithRetryPolicy replaces the linear retry ramp with a custom policy.
//
// Returns an error if the policy is nil.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *syncConfig) error {
		if p == nil {
			return errors.New("retry policy cannot be nil")
		}
		cfg.retryPolicy = p
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *syncConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithChangeHook registers a function called after every change of the
// consumer-visible state. Hooks take no arguments; call
// [Synchronizer.GetState] from the hook to read the new state.
//
// Hooks must not block. They may run on different goroutines, so a hook can
// observe a state newer than the change that triggered it. Panics are
// recovered and logged.
//
// Nil hooks are silently ignored.
func WithChangeHook(hook func()) Option {
	return func(cfg *syncConfig) error {
		if hook == nil {
			return nil
		}
		cfg.changeHooks = append(cfg.changeHooks, hook)
		return nil
	}
}

// WithClock overrides the time source used to stamp cache entries and check
// freshness. Timers always run on the real clock.
//
// Returns an error if now is nil.
func WithClock(now func() time.Time) Option {
	return func(cfg *syncConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.now = now
		return nil
	}
}
