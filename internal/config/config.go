// Package config loads warc-dedup settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/thesavant42/warc-dedup/internal/api"
)

// Environment variable names
const (
	EnvEndpoint     = "WARC_DEDUP_CDX_ENDPOINT"
	EnvConcurrency  = "WARC_DEDUP_CONCURRENCY"
	EnvMaxAttempts  = "WARC_DEDUP_MAX_ATTEMPTS"
	EnvTimeout      = "WARC_DEDUP_TIMEOUT"
	EnvRateLimit    = "WARC_DEDUP_RATE_LIMIT"
	EnvCache        = "WARC_DEDUP_CACHE"
	EnvCacheMaxAge  = "WARC_DEDUP_CACHE_MAX_AGE"
	EnvUserAgent    = "WARC_DEDUP_USER_AGENT"
	defaultCacheAge = 30 * 24 * time.Hour
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

// Config holds the settings of one run
type Config struct {
	Endpoint       string
	Concurrency    int
	MaxAttempts    int
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second, 0 = unlimited
	UserAgent      string
	CachePath      string        // empty disables the capture cache
	CacheMaxAge    time.Duration // cached captures older than this are pruned, 0 keeps all
}

// Default returns the production settings
func Default() *Config {
	opts := api.DefaultOptions()
	return &Config{
		Endpoint:       opts.Endpoint,
		Concurrency:    opts.Concurrency,
		MaxAttempts:    opts.MaxAttempts,
		RequestTimeout: opts.RequestTimeout,
		UserAgent:      opts.UserAgent,
		CacheMaxAge:    defaultCacheAge,
	}
}

// Load reads the given .env files (".env" when none are named; missing files
// are ignored) and then the process environment, on top of Default.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvEndpoint); ok {
		c.Endpoint = v
	}
	if v, ok := get(EnvUserAgent); ok {
		c.UserAgent = v
	}
	if v, ok := get(EnvCache); ok {
		c.CachePath = v
	}

	if v, ok := get(EnvConcurrency); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, EnvConcurrency, v)
		}
		c.Concurrency = n
	}
	if v, ok := get(EnvMaxAttempts); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, EnvMaxAttempts, v)
		}
		c.MaxAttempts = n
	}
	if v, ok := get(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, EnvTimeout, v)
		}
		c.RequestTimeout = d
	}
	if v, ok := get(EnvCacheMaxAge); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, EnvCacheMaxAge, v)
		}
		c.CacheMaxAge = d
	}
	if v, ok := get(EnvRateLimit); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, EnvRateLimit, v)
		}
		c.RateLimit = f
	}
	return nil
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("%w: CDX endpoint is empty", ErrInvalid)
	case !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://"):
		return fmt.Errorf("%w: CDX endpoint %q is not an http(s) URL", ErrInvalid, c.Endpoint)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalid, c.Concurrency)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalid, c.MaxAttempts)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request timeout must be positive, got %s", ErrInvalid, c.RequestTimeout)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit cannot be negative, got %g", ErrInvalid, c.RateLimit)
	case c.CacheMaxAge < 0:
		return fmt.Errorf("%w: cache max age cannot be negative, got %s", ErrInvalid, c.CacheMaxAge)
	}
	return nil
}

// LookupOptions converts the settings into CDX client options
func (c *Config) LookupOptions() api.Options {
	opts := api.DefaultOptions()
	opts.Endpoint = c.Endpoint
	opts.Concurrency = c.Concurrency
	opts.MaxAttempts = c.MaxAttempts
	opts.RequestTimeout = c.RequestTimeout
	opts.RateLimit = c.RateLimit
	opts.UserAgent = c.UserAgent
	return opts
}
