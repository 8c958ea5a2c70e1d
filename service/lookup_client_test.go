package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/pricing"
)

// fakePriceSource is a controllable PriceSource for tests: fixed result or
// error, optional per-call delay, call counting
type fakePriceSource struct {
	mu         sync.Mutex
	calls      int
	delay      time.Duration
	ignoreCtx  bool
	resolution *pricing.Resolution
	err        error
}

func (f *fakePriceSource) Resolve(ctx context.Context, packageID int64, params models.BookingParameters) (*pricing.Resolution, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		if f.ignoreCtx {
			time.Sleep(delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resolution, nil
}

func (f *fakePriceSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func numericResolution(price float64) *pricing.Resolution {
	return &pricing.Resolution{
		Price:       &price,
		TierIndex:   0,
		TierLabel:   "1-5 people",
		PeriodLabel: "January",
		Breakdown: &models.PriceBreakdown{
			TotalPrice:     price,
			NumberOfPeople: 2,
			PricePerPerson: price / 2,
			TierUsed:       "1-5 people",
			PeriodUsed:     "January",
			Currency:       "GBP",
		},
	}
}

func testParams() models.BookingParameters {
	arrival, _ := models.ParseDateOnly("2025-01-10")
	return models.BookingParameters{NumberOfPeople: 2, NumberOfNights: 2, ArrivalDate: arrival.Time}
}

func quickLookupConfig() LookupConfig {
	return LookupConfig{
		Timeout:        100 * time.Millisecond,
		CacheStaleness: time.Minute,
		MaxAttempts:    1,
		RetryBaseDelay: 5 * time.Millisecond,
	}
}

// =============================================================================
// Caching
// =============================================================================

func TestLookup_CachesResults(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180)}
	client := NewPriceLookupClient(source, quickLookupConfig())

	first, err := client.Lookup(context.Background(), 1, testParams())
	require.NoError(t, err)
	second, err := client.Lookup(context.Background(), 1, testParams())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.callCount(), "second lookup should be served from cache")
}

func TestLookup_CacheKeyIsFullyParameterized(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180)}
	client := NewPriceLookupClient(source, quickLookupConfig())

	params := testParams()
	_, err := client.Lookup(context.Background(), 1, params)
	require.NoError(t, err)

	params.NumberOfPeople = 3
	_, err = client.Lookup(context.Background(), 1, params)
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), 2, testParams())
	require.NoError(t, err)

	assert.Equal(t, 3, source.callCount())
}

func TestLookup_StaleEntriesReadAsAbsent(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180)}
	config := quickLookupConfig()
	config.CacheStaleness = 30 * time.Millisecond
	client := NewPriceLookupClient(source, config)

	_, err := client.Lookup(context.Background(), 1, testParams())
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = client.Lookup(context.Background(), 1, testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount(), "stale entry must be re-resolved")
}

func TestLookupFresh_BypassesCache(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180)}
	client := NewPriceLookupClient(source, quickLookupConfig())

	_, err := client.Lookup(context.Background(), 1, testParams())
	require.NoError(t, err)
	_, err = client.LookupFresh(context.Background(), 1, testParams())
	require.NoError(t, err)

	assert.Equal(t, 2, source.callCount())

	// The fresh result replaces the cached one
	_, err = client.Lookup(context.Background(), 1, testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
}

// =============================================================================
// Coalescing
// =============================================================================

func TestLookup_CoalescesConcurrentIdenticalCalls(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180), delay: 50 * time.Millisecond}
	client := NewPriceLookupClient(source, quickLookupConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resolution, err := client.Lookup(context.Background(), 1, testParams())
			assert.NoError(t, err)
			assert.NotNil(t, resolution)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, source.callCount(), "identical concurrent lookups must share one in-flight call")
}

func TestLookup_PeerCancellationDoesNotPoisonSharedFlight(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180), delay: 60 * time.Millisecond}
	client := NewPriceLookupClient(source, quickLookupConfig())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := client.Lookup(ctxA, 1, testParams())
		errA <- err
	}()

	time.Sleep(20 * time.Millisecond)

	type outcome struct {
		resolution *pricing.Resolution
		err        error
	}
	resultB := make(chan outcome, 1)
	go func() {
		resolution, err := client.Lookup(context.Background(), 1, testParams())
		resultB <- outcome{resolution: resolution, err: err}
	}()

	// B has joined A's in-flight call; A walking away is A's problem only
	time.Sleep(10 * time.Millisecond)
	cancelA()

	require.ErrorIs(t, <-errA, context.Canceled)

	b := <-resultB
	require.NoError(t, b.err, "a live caller must not inherit a peer's cancellation")
	require.NotNil(t, b.resolution.Price)
	assert.Equal(t, 180.0, *b.resolution.Price)
	assert.Equal(t, 1, source.callCount())
}

// =============================================================================
// Timeout and Retry
// =============================================================================

func TestLookup_TimeoutRaisesErrLookupTimeout(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180), delay: time.Second}
	config := quickLookupConfig()
	config.Timeout = 20 * time.Millisecond
	client := NewPriceLookupClient(source, config)

	_, err := client.Lookup(context.Background(), 1, testParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLookupTimeout))
}

func TestLookup_RetriesTimeoutsUpToMaxAttempts(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180), delay: time.Second}
	config := quickLookupConfig()
	config.Timeout = 20 * time.Millisecond
	config.MaxAttempts = 3
	client := NewPriceLookupClient(source, config)

	_, err := client.Lookup(context.Background(), 1, testParams())
	require.Error(t, err)
	assert.Equal(t, 3, source.callCount())
}

func TestLookup_DomainFailuresAreNotRetried(t *testing.T) {
	source := &fakePriceSource{err: &pricing.TierLimitExceededError{RequestedPeople: 11, MaxPeople: 10}}
	config := quickLookupConfig()
	config.MaxAttempts = 3
	client := NewPriceLookupClient(source, config)

	_, err := client.Lookup(context.Background(), 1, testParams())
	require.Error(t, err)

	var tierErr *pricing.TierLimitExceededError
	assert.True(t, errors.As(err, &tierErr), "raw domain error must propagate unclassified")
	assert.Equal(t, 1, source.callCount(), "domain validation failures must fail immediately")
}

func TestLookup_FailuresAreNotCached(t *testing.T) {
	source := &fakePriceSource{err: &pricing.DateOutOfRangeError{AvailablePeriods: []string{"January"}}}
	client := NewPriceLookupClient(source, quickLookupConfig())

	_, err := client.Lookup(context.Background(), 1, testParams())
	require.Error(t, err)

	source.mu.Lock()
	source.err = nil
	source.resolution = numericResolution(180)
	source.mu.Unlock()

	resolution, err := client.Lookup(context.Background(), 1, testParams())
	require.NoError(t, err)
	assert.Equal(t, 180.0, *resolution.Price)
}

func TestLookup_CallerCancellationPropagates(t *testing.T) {
	source := &fakePriceSource{resolution: numericResolution(180), delay: time.Second}
	client := NewPriceLookupClient(source, quickLookupConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Lookup(ctx, 1, testParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
