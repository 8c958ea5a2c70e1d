package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/pricing"
)

// ErrLookupTimeout is returned when a price lookup exceeds its deadline
var ErrLookupTimeout = errors.New("price lookup timed out")

// LookupConfig holds the tunables of the price lookup client
type LookupConfig struct {
	// Timeout bounds a single resolution attempt
	Timeout time.Duration
	// CacheStaleness is the age after which a cached result reads as absent
	CacheStaleness time.Duration
	// MaxAttempts bounds retries for retryable (transport/timeout) failures
	MaxAttempts int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt
	RetryBaseDelay time.Duration
}

// DefaultLookupConfig returns the production lookup configuration
func DefaultLookupConfig() LookupConfig {
	return LookupConfig{
		Timeout:        5 * time.Second,
		CacheStaleness: 5 * time.Minute,
		MaxAttempts:    3,
		RetryBaseDelay: 200 * time.Millisecond,
	}
}

// PriceLookupClient wraps a PriceSource behind a cacheable, coalescing,
// deadline-bounded call. Cached values are immutable once written, so the
// cache is safe to share across editing sessions; entries past the staleness
// window are treated as absent, not invalid. Exactly one lookup per
// (packageId, params) key is in flight at a time; concurrent identical calls
// share the pending result. Failures are not swallowed here — they propagate
// raw for the error classifier.
type PriceLookupClient struct {
	source PriceSource
	config LookupConfig
	cache  *gocache.Cache
	group  singleflight.Group
}

// NewPriceLookupClient creates a new PriceLookupClient around the source
func NewPriceLookupClient(source PriceSource, config LookupConfig) *PriceLookupClient {
	return &PriceLookupClient{
		source: source,
		config: config,
		cache:  gocache.New(config.CacheStaleness, 2*config.CacheStaleness),
	}
}

// cacheKey builds the cache/coalescing key from the fully parameterized input
func cacheKey(packageID int64, params models.BookingParameters) string {
	return fmt.Sprintf("%d|%d|%d|%s", packageID, params.NumberOfPeople, params.NumberOfNights, params.CacheKeySuffix())
}

// Lookup resolves a price, serving fresh cache hits without touching the
// source. On a miss the resolution runs under the configured timeout and a
// successful result is cached.
//
// The in-flight call is shared across editing sessions, so it runs on a
// context detached from every individual caller: one session cancelling (a
// superseding edit, a closed session) must not fail the flight for a peer
// still waiting on it. Each caller waits on its own context instead; a
// cancelled caller gets its own ctx.Err() while the flight runs to
// completion, bounded by the per-attempt timeout and retry budget.
func (c *PriceLookupClient) Lookup(ctx context.Context, packageID int64, params models.BookingParameters) (*pricing.Resolution, error) {
	key := cacheKey(packageID, params)

	if cached, found := c.cache.Get(key); found {
		return cached.(*pricing.Resolution), nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		resolution, err := c.resolveWithRetry(context.WithoutCancel(ctx), packageID, params)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, resolution, gocache.DefaultExpiration)
		return resolution, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*pricing.Resolution), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LookupFresh bypasses and replaces the cached entry for the key. Used for
// explicit recalculation, where a possibly-stale cached value is exactly what
// the operator is trying to get rid of.
func (c *PriceLookupClient) LookupFresh(ctx context.Context, packageID int64, params models.BookingParameters) (*pricing.Resolution, error) {
	key := cacheKey(packageID, params)
	c.cache.Delete(key)

	resolution, err := c.resolveWithRetry(ctx, packageID, params)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, resolution, gocache.DefaultExpiration)
	return resolution, nil
}

// InvalidateCache drops every cached resolution, e.g. after a package import
func (c *PriceLookupClient) InvalidateCache() {
	c.cache.Flush()
}

// resolveWithRetry runs the source under the per-attempt timeout, retrying
// transport/timeout failures with doubling backoff up to MaxAttempts.
// Domain validation failures fail immediately without backoff.
func (c *PriceLookupClient) resolveWithRetry(ctx context.Context, packageID int64, params models.BookingParameters) (*pricing.Resolution, error) {
	attempts := c.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := c.config.RetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		resolution, err := c.source.Resolve(attemptCtx, packageID, params)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if err == nil {
			return resolution, nil
		}
		if ctx.Err() != nil {
			// The caller went away; its result would be discarded anyway
			return nil, ctx.Err()
		}
		if timedOut {
			err = fmt.Errorf("lookup for package %d after %s: %w", packageID, c.config.Timeout, ErrLookupTimeout)
		}
		lastErr = err

		if !isTransient(err) || attempt == attempts {
			return nil, lastErr
		}

		log.Printf("💰 Lookup: attempt %d/%d for package %d failed, retrying in %s: %v", attempt, attempts, packageID, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

// isTransient reports whether a retry with identical parameters could succeed
func isTransient(err error) bool {
	if errors.Is(err, ErrLookupTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
