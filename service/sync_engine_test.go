package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/pricing"
)

// enginePackage builds the reference package used across engine tests:
// tier 0 covers 1-5 people, tier 1 covers 6-10; durations 2 and 3 nights;
// one January calendar month. (tier 1, 3 nights) is ON_REQUEST.
func enginePackage() *models.PricingPackage {
	return &models.PricingPackage{
		ID:       1,
		Version:  2,
		Name:     "Highlands Winter Escape",
		Currency: "GBP",
		Status:   models.PackageStatusActive,
		Tiers: []models.GroupSizeTier{
			{Label: "1-5 people", MinPeople: 1, MaxPeople: 5},
			{Label: "6-10 people", MinPeople: 6, MaxPeople: 10},
		},
		DurationOptions: []int{2, 3},
		Matrix: []models.PeriodEntry{
			{
				Label: "January",
				Type:  models.PeriodTypeCalendarMonth,
				Month: 1,
				Cells: []models.PriceCell{
					{TierIndex: 0, Nights: 2, Price: models.NumericPrice(100)},
					{TierIndex: 0, Nights: 3, Price: models.NumericPrice(150)},
					{TierIndex: 1, Nights: 2, Price: models.NumericPrice(180)},
					{TierIndex: 1, Nights: 3, Price: models.OnRequestPrice()},
				},
			},
		},
	}
}

func engineParams(people, nights int) models.BookingParameters {
	arrival, _ := models.ParseDateOnly("2025-01-10")
	return models.BookingParameters{NumberOfPeople: people, NumberOfNights: nights, ArrivalDate: arrival.Time}
}

// matrixSource runs the real resolver over an in-memory package, with call
// counting and an optional per-parameter delay
type matrixSource struct {
	mu        sync.Mutex
	pkg       *models.PricingPackage
	calls     int
	delayFor  func(params models.BookingParameters) time.Duration
	ignoreCtx bool
}

func (s *matrixSource) Resolve(ctx context.Context, packageID int64, params models.BookingParameters) (*pricing.Resolution, error) {
	s.mu.Lock()
	s.calls++
	pkg := s.pkg
	var delay time.Duration
	if s.delayFor != nil {
		delay = s.delayFor(params)
	}
	ignoreCtx := s.ignoreCtx
	s.mu.Unlock()

	if delay > 0 {
		if ignoreCtx {
			time.Sleep(delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return pricing.Resolve(pkg, params)
}

func (s *matrixSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// updateRecorder captures price-update side effects
type updateRecorder struct {
	mu      sync.Mutex
	prices  []float64
	reasons []string
}

func (r *updateRecorder) fn() PriceUpdateFunc {
	return func(price float64, reason string, resolution *pricing.Resolution) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.prices = append(r.prices, price)
		r.reasons = append(r.reasons, reason)
	}
}

func (r *updateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prices)
}

func (r *updateRecorder) last() (float64, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.prices) == 0 {
		return 0, ""
	}
	return r.prices[len(r.prices)-1], r.reasons[len(r.reasons)-1]
}

func quickEngineConfig() EngineConfig {
	return EngineConfig{
		DebounceDelay: 30 * time.Millisecond,
		PriceEpsilon:  0.01,
	}
}

func newTestEngine(t *testing.T, source *matrixSource, params models.BookingParameters, currentPrice float64, recorder *updateRecorder) *PriceSyncEngine {
	t.Helper()
	client := NewPriceLookupClient(source, quickLookupConfig())
	var onUpdate PriceUpdateFunc
	if recorder != nil {
		onUpdate = recorder.fn()
	}
	engine := NewPriceSyncEngine(source.pkg, params, currentPrice, client, onUpdate, nil, quickEngineConfig())
	t.Cleanup(engine.Close)
	return engine
}

func waitForStatus(t *testing.T, engine *PriceSyncEngine, status SyncStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return engine.Snapshot().Status == status
	}, 2*time.Second, 5*time.Millisecond, "waiting for status %s, have %s", status, engine.Snapshot().Status)
}

// =============================================================================
// Initial Link and Basic Sync
// =============================================================================

func TestEngine_InitialLookupAppliesPrice(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	recorder := &updateRecorder{}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, recorder)

	waitForStatus(t, engine, StatusSynced)

	snapshot := engine.Snapshot()
	assert.Equal(t, 180.0, snapshot.DisplayedPrice)
	assert.False(t, snapshot.IsCustomPrice)
	require.NotNil(t, snapshot.Breakdown)
	assert.Equal(t, 180.0, snapshot.Breakdown.TotalPrice)
	assert.Equal(t, "6-10 people", snapshot.Breakdown.TierUsed)

	price, reason := recorder.last()
	assert.Equal(t, 180.0, price)
	assert.Equal(t, models.PriceReasonPackageSelection, reason)
}

func TestEngine_NoUpdateWhenPriceAlreadyMatches(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	recorder := &updateRecorder{}
	engine := newTestEngine(t, source, engineParams(7, 2), 180, recorder)

	waitForStatus(t, engine, StatusSynced)
	assert.Equal(t, 0, recorder.count(), "a price within epsilon of the stored one must not be re-applied")
}

// =============================================================================
// Debouncing
// =============================================================================

func TestEngine_RapidEditsProduceSingleLookup(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)
	initialCalls := source.callCount()

	// Ten edits in quick succession; only the final values may resolve
	for people := 1; people <= 9; people++ {
		engine.SetParameters(engineParams(people, 2))
	}
	engine.SetParameters(engineParams(3, 3))

	waitForStatus(t, engine, StatusSynced)
	snapshot := engine.Snapshot()
	require.NotNil(t, snapshot.Breakdown)
	assert.Equal(t, 150.0, snapshot.Breakdown.TotalPrice)
	assert.Equal(t, 3, snapshot.Breakdown.NumberOfPeople)

	// Allow any stray timers to fire before counting
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, initialCalls+1, source.callCount(), "intermediate values must never trigger a lookup")
}

// =============================================================================
// Custom Price
// =============================================================================

func TestEngine_MarkCustomSuppressesRecalculation(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)
	calls := source.callCount()

	engine.MarkAsCustomPrice()
	assert.Equal(t, StatusCustom, engine.Snapshot().Status)
	assert.True(t, engine.Snapshot().IsCustomPrice)

	engine.SetParameters(engineParams(2, 2))
	engine.SetParameters(engineParams(3, 3))
	engine.SetParameters(engineParams(4, 2))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, calls, source.callCount(), "parameter changes while custom must not trigger lookups")
	assert.Equal(t, StatusCustom, engine.Snapshot().Status)
}

func TestEngine_ManualDivergenceMarksCustom(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	recorder := &updateRecorder{}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, recorder)
	waitForStatus(t, engine, StatusSynced)
	calls := source.callCount()

	engine.SetPrice(250)

	snapshot := engine.Snapshot()
	assert.Equal(t, StatusCustom, snapshot.Status)
	assert.True(t, snapshot.IsCustomPrice)
	assert.Equal(t, 250.0, snapshot.DisplayedPrice)

	price, reason := recorder.last()
	assert.Equal(t, 250.0, price)
	assert.Equal(t, models.PriceReasonManualOverride, reason)

	engine.SetParameters(engineParams(2, 2))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, source.callCount())
}

func TestEngine_ManualEditWithinEpsilonStaysSynced(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)

	// Floating-point noise around the calculated price is not an override
	engine.SetPrice(180.005)

	snapshot := engine.Snapshot()
	assert.Equal(t, StatusSynced, snapshot.Status)
	assert.False(t, snapshot.IsCustomPrice)
}

func TestEngine_ResetToCalculatedRestoresPrice(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	recorder := &updateRecorder{}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, recorder)
	waitForStatus(t, engine, StatusSynced)

	engine.SetPrice(250)
	require.Equal(t, StatusCustom, engine.Snapshot().Status)

	engine.ResetToCalculated()

	snapshot := engine.Snapshot()
	assert.Equal(t, StatusSynced, snapshot.Status)
	assert.False(t, snapshot.IsCustomPrice)
	assert.Equal(t, 180.0, snapshot.DisplayedPrice)

	price, reason := recorder.last()
	assert.Equal(t, 180.0, price)
	assert.Equal(t, models.PriceReasonRecalculation, reason)
}

// =============================================================================
// ON_REQUEST
// =============================================================================

func TestEngine_OnRequestBecomesCustom(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	recorder := &updateRecorder{}
	engine := newTestEngine(t, source, engineParams(8, 3), 50, recorder)

	waitForStatus(t, engine, StatusCustom)

	snapshot := engine.Snapshot()
	assert.Nil(t, snapshot.Breakdown, "on-request has no breakdown to show")
	assert.Nil(t, snapshot.Error, "ON_REQUEST is a successful resolution, not a failure")
	assert.Equal(t, 50.0, snapshot.DisplayedPrice, "the stored price is preserved")
	assert.Equal(t, 0, recorder.count())
}

func TestEngine_ResetOnRequestStaysCustom(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(8, 3), 0, nil)
	waitForStatus(t, engine, StatusCustom)

	engine.ResetToCalculated()

	// There is no calculated value to reset to
	assert.Equal(t, StatusCustom, engine.Snapshot().Status)
}

func TestEngine_RecalculateLiftsOnRequestHold(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(8, 3), 0, nil)
	waitForStatus(t, engine, StatusCustom)

	engine.SetParameters(engineParams(7, 2))
	assert.Equal(t, StatusOutOfSync, engine.Snapshot().Status,
		"a parameter edit during the on-request hold flags the price instead of recalculating")

	engine.RecalculatePrice()
	waitForStatus(t, engine, StatusSynced)
	assert.Equal(t, 180.0, engine.Snapshot().DisplayedPrice)
}

// =============================================================================
// Supersession
// =============================================================================

func TestEngine_SupersededResultNeverApplied(t *testing.T) {
	source := &matrixSource{pkg: enginePackage(), ignoreCtx: true}
	source.delayFor = func(params models.BookingParameters) time.Duration {
		if params.NumberOfPeople == 7 {
			return 150 * time.Millisecond
		}
		return 0
	}
	engine := newTestEngine(t, source, engineParams(2, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)

	// Slow lookup for 7 people goes in flight, then a newer edit supersedes it
	engine.SetParameters(engineParams(7, 2))
	time.Sleep(50 * time.Millisecond)
	engine.SetParameters(engineParams(3, 2))

	waitForStatus(t, engine, StatusSynced)

	// Wait past the slow lookup's landing; its result must be discarded
	time.Sleep(250 * time.Millisecond)
	snapshot := engine.Snapshot()
	assert.Equal(t, StatusSynced, snapshot.Status)
	require.NotNil(t, snapshot.Breakdown)
	assert.Equal(t, 3, snapshot.Breakdown.NumberOfPeople, "the superseded result for 7 people overwrote a later state")
	assert.Equal(t, 100.0, snapshot.Breakdown.TotalPrice)
}

// =============================================================================
// Failures and Recovery
// =============================================================================

func TestEngine_TimeoutBecomesErrorWithRecovery(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	source.delayFor = func(models.BookingParameters) time.Duration { return time.Second }
	client := NewPriceLookupClient(source, LookupConfig{
		Timeout:        30 * time.Millisecond,
		CacheStaleness: time.Minute,
		MaxAttempts:    1,
		RetryBaseDelay: 5 * time.Millisecond,
	})
	engine := NewPriceSyncEngine(source.pkg, engineParams(7, 2), 90, client, nil, nil, quickEngineConfig())
	t.Cleanup(engine.Close)

	waitForStatus(t, engine, StatusError)

	snapshot := engine.Snapshot()
	require.NotNil(t, snapshot.Error)
	assert.Equal(t, CodeCalculationTimeout, snapshot.Error.Code)
	assert.True(t, snapshot.Error.Retryable)
	require.NotNil(t, snapshot.Recovery)
	assert.Equal(t, []RecoveryActionType{ActionRetry, ActionManualPrice, ActionDismiss}, snapshot.Recovery.ActionTypes())
	assert.Equal(t, 90.0, snapshot.DisplayedPrice, "the display rolls back to the last confirmed price")
	assert.False(t, snapshot.PriceIsProvisional)
}

func TestEngine_DomainFailureSurfacesMismatch(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(11, 2), 0, nil)

	waitForStatus(t, engine, StatusError)

	snapshot := engine.Snapshot()
	require.NotNil(t, snapshot.Error)
	assert.Equal(t, CodeTierLimitExceeded, snapshot.Error.Code)
	assert.False(t, snapshot.Error.Retryable)
	assert.EqualValues(t, 11, snapshot.Error.Context["requestedPeople"])
	require.NotNil(t, snapshot.Recovery)
	assert.Equal(t, ActionAdjustParameters, snapshot.Recovery.Actions[0].Type)
	assert.NotEmpty(t, snapshot.ValidationWarnings)
}

func TestEngine_RetryActionRecovers(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	source.delayFor = func(models.BookingParameters) time.Duration { return time.Second }
	client := NewPriceLookupClient(source, LookupConfig{
		Timeout:        30 * time.Millisecond,
		CacheStaleness: time.Minute,
		MaxAttempts:    1,
		RetryBaseDelay: 5 * time.Millisecond,
	})
	engine := NewPriceSyncEngine(source.pkg, engineParams(7, 2), 0, client, nil, nil, quickEngineConfig())
	t.Cleanup(engine.Close)
	waitForStatus(t, engine, StatusError)

	// The environment recovers; the default retry handler re-runs the lookup
	source.mu.Lock()
	source.delayFor = nil
	source.mu.Unlock()

	for _, action := range engine.Snapshot().Recovery.Actions {
		if action.Type == ActionRetry {
			action.Invoke()
		}
	}

	waitForStatus(t, engine, StatusSynced)
	assert.Equal(t, 180.0, engine.Snapshot().DisplayedPrice)
}

// =============================================================================
// Validation Warnings
// =============================================================================

func TestEngine_WarningsCoexistWithCustomStatus(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)

	engine.MarkAsCustomPrice()
	engine.SetParameters(engineParams(7, 5))

	snapshot := engine.Snapshot()
	assert.Equal(t, StatusCustom, snapshot.Status, "warnings are advisory and do not change status")
	require.Len(t, snapshot.ValidationWarnings, 1)
	assert.Contains(t, snapshot.ValidationWarnings[0], "5 nights")
}

func TestEngine_WarningsClearWhenParametersFit(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)

	engine.MarkAsCustomPrice()
	engine.SetParameters(engineParams(7, 5))
	require.NotEmpty(t, engine.Snapshot().ValidationWarnings)

	engine.SetParameters(engineParams(7, 2))
	assert.Empty(t, engine.Snapshot().ValidationWarnings)
}

// =============================================================================
// Optimistic Display and Teardown
// =============================================================================

func TestEngine_RecalculateShowsProvisionalEstimate(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)

	source.mu.Lock()
	source.delayFor = func(models.BookingParameters) time.Duration { return 80 * time.Millisecond }
	source.mu.Unlock()

	engine.RecalculatePrice()

	snapshot := engine.Snapshot()
	assert.Equal(t, StatusCalculating, snapshot.Status)
	assert.True(t, snapshot.PriceIsProvisional)
	assert.Equal(t, 180.0, snapshot.DisplayedPrice, "the last calculated price is shown as the estimate")

	waitForStatus(t, engine, StatusSynced)
	assert.False(t, engine.Snapshot().PriceIsProvisional)
}

func TestEngine_ClosingOneSessionDoesNotStrandAPeer(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	source.delayFor = func(models.BookingParameters) time.Duration { return 60 * time.Millisecond }
	client := NewPriceLookupClient(source, quickLookupConfig())

	params := engineParams(7, 2)
	engineA := NewPriceSyncEngine(source.pkg, params, 0, client, nil, nil, quickEngineConfig())
	engineB := NewPriceSyncEngine(source.pkg, params, 0, client, nil, nil, quickEngineConfig())
	t.Cleanup(engineB.Close)

	// Both initial lookups share one in-flight call; closing A must not
	// cancel it out from under B
	time.Sleep(20 * time.Millisecond)
	engineA.Close()

	waitForStatus(t, engineB, StatusSynced)
	assert.Equal(t, 180.0, engineB.Snapshot().DisplayedPrice)
}

func TestEngine_CloseStopsAllWork(t *testing.T) {
	source := &matrixSource{pkg: enginePackage()}
	engine := newTestEngine(t, source, engineParams(7, 2), 0, nil)
	waitForStatus(t, engine, StatusSynced)
	calls := source.callCount()

	engine.Close()
	engine.SetParameters(engineParams(2, 2))
	engine.RecalculatePrice()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, calls, source.callCount())
}
