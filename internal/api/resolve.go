package api

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/thesavant42/warc-dedup/internal/models"
	"golang.org/x/sync/semaphore"
)

// Resolve looks up one key. Windows are tried in order; transport errors are
// retried up to MaxAttempts per window, and the first response received from
// any window decides the result.
func (c *CDXClient) Resolve(ctx context.Context, key models.DedupKey) models.LookupResult {
	if key.Digest.Algorithm == "" || key.Digest.Value == "" {
		c.logEvent("Key %s has no labelled payload digest.", key)
		return models.LookupFailed(models.ReasonMissingDigest)
	}

	if c.cache != nil {
		capture, err := c.cache.GetCapture(ctx, key)
		if err != nil && c.logger != nil {
			c.logger.Warn("Capture cache lookup failed", "key", key, "error", err)
		}
		if capture != nil {
			c.logEvent("Key %s found in capture cache.", key)
			return models.Matched(*capture)
		}
	}

	for _, window := range c.opts.Windows {
		body, ok := c.fetchWindow(ctx, key, window)
		if !ok {
			if ctx.Err() != nil {
				break
			}
			c.logEvent("Key %s got no response in the %s window after %d attempts.", key, window.Name, c.opts.MaxAttempts)
			continue
		}

		result := c.ParseResponse(key, &body)
		if result.IsMatched() && c.cache != nil {
			if err := c.cache.PutCapture(ctx, key, *result.Capture); err != nil && c.logger != nil {
				c.logger.Warn("Capture cache store failed", "key", key, "error", err)
			}
		}
		return result
	}

	return c.ParseResponse(key, nil)
}

// fetchWindow queries one window until a response arrives or attempts run out
func (c *CDXClient) fetchWindow(ctx context.Context, key models.DedupKey, window Window) (string, bool) {
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", false
			}
		}

		body, err := c.fetch(ctx, key, window)
		if err == nil {
			return body, true
		}
		if ctx.Err() != nil {
			return "", false
		}

		if c.logger != nil {
			c.logger.Warn("Error connecting to CDX API", "key", key, "window", window.Name,
				"attempt", attempt, "maxAttempts", c.opts.MaxAttempts, "error", err)
		}

		if attempt == c.opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(c.backoff(attempt)):
		}
	}
	return "", false
}

// backoff returns the wait after the given failed attempt:
// InitialBackoff * Multiplier^(attempt-1), capped at MaxBackoff, plus jitter.
func (c *CDXClient) backoff(attempt int) time.Duration {
	d := c.opts.InitialBackoff
	for i := 1; i < attempt && d > 0; i++ {
		d = time.Duration(float64(d) * c.opts.BackoffMultiplier)
		if c.opts.MaxBackoff > 0 && d > c.opts.MaxBackoff {
			d = c.opts.MaxBackoff
			break
		}
	}
	if c.opts.MaxBackoff > 0 && d > c.opts.MaxBackoff {
		d = c.opts.MaxBackoff
	}
	if c.opts.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(c.opts.Jitter)))
	}
	return d
}

// ResolveAll resolves every key with at most Concurrency lookups in flight.
// store is called once per key, concurrently from worker goroutines. It
// returns when every key has been stored.
func (c *CDXClient) ResolveAll(ctx context.Context, keys []models.DedupKey, store func(models.DedupKey, models.LookupResult)) {
	sem := semaphore.NewWeighted(int64(c.opts.Concurrency))
	var wg sync.WaitGroup

	for i, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			// cancelled: the remaining keys never get a response
			for _, k := range keys[i:] {
				store(k, c.ParseResponse(k, nil))
			}
			break
		}

		wg.Add(1)
		go func(key models.DedupKey) {
			defer wg.Done()
			defer sem.Release(1)
			store(key, c.Resolve(ctx, key))
		}(key)
	}

	wg.Wait()
}

// ResolveMany resolves keys and returns the results by key
func (c *CDXClient) ResolveMany(ctx context.Context, keys []models.DedupKey) map[models.DedupKey]models.LookupResult {
	results := make(map[models.DedupKey]models.LookupResult, len(keys))
	var mu sync.Mutex

	c.ResolveAll(ctx, keys, func(key models.DedupKey, result models.LookupResult) {
		mu.Lock()
		defer mu.Unlock()
		results[key] = result
	})
	return results
}
