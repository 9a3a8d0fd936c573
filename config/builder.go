package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/creditpulse"
	"github.com/jpalmerr/creditpulse/internal/poller"
)

// BuildOptions converts the sync section into synchronizer options.
// logger may be nil.
func BuildOptions(cfg *Config, logger *slog.Logger) []creditpulse.Option {
	opts := []creditpulse.Option{
		creditpulse.WithCacheTTL(cfg.Sync.CacheTTL.Duration()),
		creditpulse.WithPollInterval(cfg.Sync.PollInterval.Duration()),
		creditpulse.WithFetchTimeout(cfg.Sync.FetchTimeout.Duration()),
		creditpulse.WithRetryBaseDelay(cfg.Sync.RetryBaseDelay.Duration()),
	}
	if cfg.Sync.MaxRetries != nil {
		opts = append(opts, creditpulse.WithMaxRetries(*cfg.Sync.MaxRetries))
	}
	if logger != nil {
		opts = append(opts, creditpulse.WithLogger(logger))
	}
	return opts
}

// BuildClient creates the HTTP fetcher described by the source section.
func BuildClient(cfg *Config) *poller.Client {
	opts := []poller.ClientOption{
		poller.WithMethod(cfg.Source.Method),
		poller.WithRateLimit(cfg.Source.RateLimit, cfg.Source.RateBurst),
	}

	// sort keys for deterministic ordering
	keys := make([]string, 0, len(cfg.Source.Headers))
	for k := range cfg.Source.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, poller.WithHeader(k, cfg.Source.Headers[k]))
	}

	return poller.NewClient(cfg.Source.URL, opts...)
}
