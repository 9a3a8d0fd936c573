// Package config provides YAML and TOML configuration parsing for the
// creditpulse command.
//
// Example configuration:
//
//	title: H2Ledger
//	port: 8080
//
//	source:
//	  url: http://localhost:8000/api/dashboard/analytics/
//	  headers:
//	    Authorization: "Bearer ${H2LEDGER_TOKEN}"
//	  rate_limit: 2
//
//	sync:
//	  cache_ttl: 30s
//	  poll_interval: 60s
//	  fetch_timeout: 10s
//	  max_retries: 3
//	  retry_base_delay: 2s
//
// Files ending in .toml are read as TOML with the same keys.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/creditpulse"
)

const (
	// minDuration is the smallest accepted value for any sync duration.
	minDuration = 100 * time.Millisecond

	// minPollInterval prevents accidental DoS of the analytics API with
	// overly aggressive polling.
	minPollInterval = 1 * time.Second

	// maxRetries caps the retry budget so a failing API is not hammered.
	maxRetries = 10

	defaultPort = 8080
)

// Format identifies the encoding of a configuration file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatForPath picks the format from the file extension; anything other
// than .toml is YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Config is the root configuration structure.
//
// Use [Load] or [Parse] to create a Config.
type Config struct {
	// Title is the dashboard title. Defaults to "CreditPulse" if not set.
	Title string `yaml:"title" toml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" toml:"port"`

	// Source describes the analytics API.
	Source SourceConfig `yaml:"source" toml:"source"`

	// Sync holds the synchronizer tunables.
	Sync SyncConfig `yaml:"sync" toml:"sync"`
}

// SourceConfig describes where the analytics document is fetched from.
type SourceConfig struct {
	// URL is the analytics endpoint.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url" toml:"url"`

	// Method is the HTTP method (GET or POST). Defaults to GET.
	Method string `yaml:"method" toml:"method"`

	// Headers are custom HTTP headers sent with each request, e.g. a bearer
	// token. Values support environment variable substitution.
	Headers map[string]string `yaml:"headers" toml:"headers"`

	// RateLimit caps outgoing requests per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`

	// RateBurst is the number of requests allowed in a burst. Defaults to 1.
	RateBurst int `yaml:"rate_burst" toml:"rate_burst"`
}

// SyncConfig holds the synchronizer tunables. Zero values take the
// library defaults.
type SyncConfig struct {
	CacheTTL       Duration `yaml:"cache_ttl" toml:"cache_ttl"`
	PollInterval   Duration `yaml:"poll_interval" toml:"poll_interval"`
	FetchTimeout   Duration `yaml:"fetch_timeout" toml:"fetch_timeout"`
	RetryBaseDelay Duration `yaml:"retry_base_delay" toml:"retry_base_delay"`

	// MaxRetries is the retry budget per fetch cycle. Nil means the default
	// of 3; an explicit 0 disables retries.
	MaxRetries *int `yaml:"max_retries" toml:"max_retries"`
}

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, which TOML decoding uses.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a configuration file. The format follows the file
// extension (see [FormatForPath]).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFormat(data, FormatForPath(path))
}

// Parse parses YAML configuration data.
func Parse(data []byte) (*Config, error) {
	return ParseFormat(data, FormatYAML)
}

// ParseFormat parses configuration data in the given format, applies
// defaults, expands environment variables and validates the result.
func ParseFormat(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Source.Method == "" {
		c.Source.Method = "GET"
	}
	if c.Source.RateBurst == 0 {
		c.Source.RateBurst = 1
	}
	if c.Sync.CacheTTL == 0 {
		c.Sync.CacheTTL = Duration(creditpulse.DefaultCacheTTL)
	}
	if c.Sync.PollInterval == 0 {
		c.Sync.PollInterval = Duration(creditpulse.DefaultPollInterval)
	}
	if c.Sync.FetchTimeout == 0 {
		c.Sync.FetchTimeout = Duration(creditpulse.DefaultFetchTimeout)
	}
	if c.Sync.RetryBaseDelay == 0 {
		c.Sync.RetryBaseDelay = Duration(creditpulse.DefaultRetryBaseDelay)
	}
	if c.Sync.MaxRetries == nil {
		n := creditpulse.DefaultMaxRetries
		c.Sync.MaxRetries = &n
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	src := &c.Source
	if src.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	expanded, err := expandEnvVars(src.URL)
	if err != nil {
		return fmt.Errorf("source.url: %w", err)
	}
	src.URL = expanded

	parsedURL, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("source.url: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("source.url: scheme must be http or https, got %q", parsedURL.Scheme)
	}

	for k, v := range src.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("source.headers[%s]: %w", k, err)
		}
		src.Headers[k] = expanded
	}

	src.Method = strings.ToUpper(src.Method)
	if src.Method != "GET" && src.Method != "POST" {
		return fmt.Errorf("source.method must be GET or POST, got %q", src.Method)
	}

	if src.RateLimit < 0 {
		return fmt.Errorf("source.rate_limit cannot be negative, got %v", src.RateLimit)
	}
	if src.RateBurst < 1 {
		return fmt.Errorf("source.rate_burst must be at least 1, got %d", src.RateBurst)
	}

	durations := []struct {
		name string
		d    Duration
	}{
		{"sync.cache_ttl", c.Sync.CacheTTL},
		{"sync.poll_interval", c.Sync.PollInterval},
		{"sync.fetch_timeout", c.Sync.FetchTimeout},
		{"sync.retry_base_delay", c.Sync.RetryBaseDelay},
	}
	for _, d := range durations {
		if d.d.Duration() < minDuration {
			return fmt.Errorf("%s must be at least %s, got %s", d.name, minDuration, d.d.Duration())
		}
	}
	if c.Sync.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("sync.poll_interval must be at least %s, got %s", minPollInterval, c.Sync.PollInterval.Duration())
	}

	if n := *c.Sync.MaxRetries; n < 0 || n > maxRetries {
		return fmt.Errorf("sync.max_retries must be between 0 and %d, got %d", maxRetries, n)
	}

	return nil
}
