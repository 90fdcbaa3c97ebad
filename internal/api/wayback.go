package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/warc-dedup/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the Internet Archive dedup CDX server
	DefaultEndpoint = "http://wwwb-dedup.us.archive.org:8083/cdx/search"

	defaultUserAgent = "warc-dedup/1.0"
	cdxResultLimit   = 100 // rows per query; only the first valid row is used
)

// Window restricts a lookup to one side of a cutoff timestamp
type Window struct {
	Name  string
	Param string // "to" or "from"
	Bound string // CDX timestamp prefix
}

var (
	// PrimaryWindow prefers older, stable captures
	PrimaryWindow = Window{Name: "primary", Param: "to", Bound: "201905310000"}
	// FallbackWindow is only queried when the primary window never answered
	FallbackWindow = Window{Name: "fallback", Param: "from", Bound: "20190703000"}
)

// Options configures a CDXClient
type Options struct {
	Endpoint          string
	Concurrency       int           // simultaneous in-flight keys
	MaxAttempts       int           // attempts per window before giving up on it
	RequestTimeout    time.Duration // per attempt
	InitialBackoff    time.Duration // wait after the first transport error
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            time.Duration // random extra wait, up to this much
	RateLimit         float64       // requests per second across all workers, 0 = unlimited
	UserAgent         string
	Windows           []Window
}

// DefaultOptions returns the production lookup settings
func DefaultOptions() Options {
	return Options{
		Endpoint:          DefaultEndpoint,
		Concurrency:       10,
		MaxAttempts:       10,
		RequestTimeout:    20 * time.Second,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            250 * time.Millisecond,
		UserAgent:         defaultUserAgent,
		Windows:           []Window{PrimaryWindow, FallbackWindow},
	}
}

// EventLog receives audit messages for every lookup decision
type EventLog interface {
	Logf(format string, args ...any)
}

// CaptureCache stores matched captures between runs
type CaptureCache interface {
	GetCapture(ctx context.Context, key models.DedupKey) (*models.Capture, error)
	PutCapture(ctx context.Context, key models.DedupKey, capture models.Capture) error
}

// CDXClient resolves dedup keys against a CDX server
type CDXClient struct {
	httpClient *http.Client
	opts       Options
	logger     *log.Logger
	events     EventLog
	cache      CaptureCache
	limiter    *rate.Limiter
}

// NewCDXClient creates a client. Zero-valued options fall back to
// DefaultOptions; logger and events may be nil.
func NewCDXClient(opts Options, logger *log.Logger, events EventLog) *CDXClient {
	opts = withDefaults(opts)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     opts.Concurrency,
		MaxIdleConnsPerHost: opts.Concurrency,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &CDXClient{
		httpClient: &http.Client{Transport: transport},
		opts:       opts,
		logger:     logger,
		events:     events,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Endpoint == "" {
		opts.Endpoint = def.Endpoint
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.BackoffMultiplier < 1 {
		opts.BackoffMultiplier = def.BackoffMultiplier
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if len(opts.Windows) == 0 {
		opts.Windows = def.Windows
	}
	return opts
}

// WithCache attaches a capture cache consulted before the network
func (c *CDXClient) WithCache(cache CaptureCache) *CDXClient {
	c.cache = cache
	return c
}

// WithHTTPClient replaces the HTTP client, keeping per-attempt timeouts
func (c *CDXClient) WithHTTPClient(hc *http.Client) *CDXClient {
	c.httpClient = hc
	return c
}

// Options returns the effective options
func (c *CDXClient) Options() Options {
	return c.opts
}

// BuildLookupQuery constructs the raw query string for one key and window.
// Returns the query string WITHOUT the leading '?'. Revisit records held by
// the index are filtered out: a record may only point at an original capture.
func BuildLookupQuery(key models.DedupKey, window Window) string {
	return fmt.Sprintf(
		"url=%s&limit=%d&filter=digest:%s&fl=timestamp,original&%s=%s&filter=!mimetype:warc/revisit",
		url.QueryEscape(key.URI),
		cdxResultLimit,
		url.QueryEscape(key.Digest.Value),
		window.Param,
		window.Bound,
	)
}

// fetch issues a single query. A nil error means a response was received;
// its body is returned whatever the status code.
func (c *CDXClient) fetch(ctx context.Context, key models.DedupKey, window Window) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	rawURL := c.opts.Endpoint + "?" + BuildLookupQuery(key, window)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && c.logger != nil {
		c.logger.Warn("CDX API returned non-200 status", "status", resp.StatusCode, "key", key, "window", window.Name)
	}

	return string(body), nil
}

func (c *CDXClient) logEvent(format string, args ...any) {
	if c.events != nil {
		c.events.Logf(format, args...)
	}
}

// firstLine trims a response body for log output
func firstLine(body string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return line
}
