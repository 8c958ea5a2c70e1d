package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/pricing"
	"travel-quotes-backoffice/utils"
)

// SyncStatus is the current relationship between the displayed price and the
// matrix-calculated price
type SyncStatus string

const (
	StatusSynced      SyncStatus = "synced"
	StatusCalculating SyncStatus = "calculating"
	StatusCustom      SyncStatus = "custom"
	StatusError       SyncStatus = "error"
	StatusOutOfSync   SyncStatus = "out-of-sync"
)

// EngineConfig holds the sync engine tunables. Tests inject short values.
type EngineConfig struct {
	// DebounceDelay is how long after the last parameter edit a lookup fires
	DebounceDelay time.Duration
	// PriceEpsilon tolerates floating-point noise when comparing prices
	PriceEpsilon float64
}

// DefaultEngineConfig returns the production engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DebounceDelay: 500 * time.Millisecond,
		PriceEpsilon:  0.01,
	}
}

// PriceUpdateFunc is the side-effect callback applying a new price to the
// quote record. Reason is one of the models.PriceReason* constants. The
// resolution that produced the price is passed so the caller can persist the
// linked-package snapshot; it is nil for manual overrides.
type PriceUpdateFunc func(price float64, reason string, resolution *pricing.Resolution)

// SyncSnapshot is the reactive view exposed to the form/UI layer
type SyncSnapshot struct {
	SessionID          string                 `json:"sessionId"`
	Status             SyncStatus             `json:"status"`
	IsCustomPrice      bool                   `json:"isCustomPrice"`
	DisplayedPrice     float64                `json:"displayedPrice"`
	PriceIsProvisional bool                   `json:"priceIsProvisional"`
	Breakdown          *models.PriceBreakdown `json:"breakdown,omitempty"`
	Error              *ClassifiedError       `json:"error,omitempty"`
	Recovery           *RecoveryPlan          `json:"recovery,omitempty"`
	ValidationWarnings []string               `json:"validationWarnings"`
}

// PriceSyncEngine keeps a quote's displayed price consistent with its linked
// pricing package while the operator edits group size, duration and date.
// One instance exists per quote-editing session; it is torn down when the
// package is unlinked or the quote is saved/closed, without touching the
// booking parameters or the persisted price.
//
// Parameter edits are debounced; a change arriving before the delay elapses
// restarts the timer, so intermediate values never trigger a lookup. Each
// issued lookup carries a monotonically increasing sequence number and a
// superseded lookup's late result is discarded, never applied.
type PriceSyncEngine struct {
	mu sync.Mutex

	sessionID string
	pkg       *models.PricingPackage
	client    *PriceLookupClient
	config    EngineConfig
	onUpdate  PriceUpdateFunc
	handlers  RecoveryHandlers

	params        models.BookingParameters
	status        SyncStatus
	isCustomPrice bool
	// onRequestHold suppresses automatic recalculation after an ON_REQUEST
	// resolution; the price field is operator-owned until an explicit action
	onRequestHold bool

	lastError           *ClassifiedError
	recovery            *RecoveryPlan
	warnings            []string
	lastResolution      *pricing.Resolution
	lastCalculatedPrice *float64
	currentPrice        float64
	optimistic          *OptimisticUpdateCoordinator

	debounce      *time.Timer
	cancelPending context.CancelFunc
	seq           uint64
	closed        bool
}

// NewPriceSyncEngine creates the engine for a freshly linked package and
// immediately issues the initial lookup (state: calculating). currentPrice is
// the price currently stored on the quote.
func NewPriceSyncEngine(pkg *models.PricingPackage, params models.BookingParameters, currentPrice float64, client *PriceLookupClient, onUpdate PriceUpdateFunc, handlers RecoveryHandlers, config EngineConfig) *PriceSyncEngine {
	e := &PriceSyncEngine{
		sessionID:    uuid.NewString(),
		pkg:          pkg,
		client:       client,
		config:       config,
		onUpdate:     onUpdate,
		params:       params,
		status:       StatusCalculating,
		currentPrice: currentPrice,
		optimistic:   NewOptimisticUpdateCoordinator(currentPrice),
	}
	e.handlers = e.bindDefaultHandlers(handlers)
	e.warnings = computeValidationWarnings(pkg, params)

	log.Printf("💰 SyncEngine: session %s linked package %d (version %d)", e.sessionID, pkg.ID, pkg.Version)
	e.issueLookup(false, models.PriceReasonPackageSelection)
	return e
}

// bindDefaultHandlers wires retry and manual-price to engine actions unless
// the caller supplied its own behavior
func (e *PriceSyncEngine) bindDefaultHandlers(handlers RecoveryHandlers) RecoveryHandlers {
	bound := RecoveryHandlers{}
	for action, handler := range handlers {
		bound[action] = handler
	}
	if bound[ActionRetry] == nil {
		bound[ActionRetry] = func() { e.RecalculatePrice() }
	}
	if bound[ActionManualPrice] == nil {
		bound[ActionManualPrice] = func() { e.MarkAsCustomPrice() }
	}
	return bound
}

// SessionID returns the editing-session identifier
func (e *PriceSyncEngine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// SetParameters records a booking-parameter edit. Validation warnings are
// recomputed on every change; the recalculation itself is debounced and
// suppressed entirely while the price is custom.
func (e *PriceSyncEngine) SetParameters(params models.BookingParameters) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.params = params
	e.warnings = computeValidationWarnings(e.pkg, params)

	if e.isCustomPrice {
		// Custom price suppresses automatic recalculation until reset
		return
	}
	if e.onRequestHold {
		// There is no calculated price to sync to; flag that the displayed
		// price may no longer match instead of silently recalculating
		e.status = StatusOutOfSync
		return
	}

	e.status = StatusCalculating
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.config.DebounceDelay, func() {
		e.issueLookup(false, models.PriceReasonRecalculation)
	})
}

// SetPrice records a direct edit of the price field. Diverging from the last
// calculated price by more than epsilon marks the price custom and stops
// automatic recalculation until reset.
func (e *PriceSyncEngine) SetPrice(price float64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	if !e.isCustomPrice {
		diverged := e.lastCalculatedPrice == nil ||
			!utils.ApproxEqual(price, *e.lastCalculatedPrice, e.config.PriceEpsilon)
		if diverged {
			e.isCustomPrice = true
			e.status = StatusCustom
			e.stopPendingLocked()
			log.Printf("💰 SyncEngine: session %s price manually set to %.2f, marking custom", e.sessionID, price)
		}
	}

	e.currentPrice = price
	e.optimistic.Confirm(price)
	onUpdate := e.onUpdate
	resolution := e.lastResolution
	e.mu.Unlock()

	if onUpdate != nil {
		onUpdate(price, models.PriceReasonManualOverride, resolution)
	}
}

// MarkAsCustomPrice marks the displayed price as an intentional override,
// independent of any value comparison
func (e *PriceSyncEngine) MarkAsCustomPrice() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.isCustomPrice = true
	e.status = StatusCustom
	e.lastError = nil
	e.recovery = nil
	e.stopPendingLocked()
	log.Printf("💰 SyncEngine: session %s marked custom", e.sessionID)
}

// ResetToCalculated clears the custom override and re-applies the last known
// calculated price. If the last result was ON_REQUEST there is no calculated
// value to reset to and the status stays custom; with no prior result at all
// a fresh calculation is issued.
func (e *PriceSyncEngine) ResetToCalculated() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	e.isCustomPrice = false

	if e.lastResolution != nil && e.lastResolution.PriceWasOnRequest {
		e.status = StatusCustom
		e.mu.Unlock()
		return
	}

	if e.lastCalculatedPrice == nil {
		e.status = StatusCalculating
		e.mu.Unlock()
		e.issueLookup(true, models.PriceReasonRecalculation)
		return
	}

	price := *e.lastCalculatedPrice
	changed := !utils.ApproxEqual(price, e.currentPrice, e.config.PriceEpsilon)
	e.currentPrice = price
	e.optimistic.Confirm(price)
	e.status = StatusSynced
	e.lastError = nil
	e.recovery = nil
	onUpdate := e.onUpdate
	resolution := e.lastResolution
	e.mu.Unlock()

	if changed && onUpdate != nil {
		onUpdate(price, models.PriceReasonRecalculation, resolution)
	}
}

// RecalculatePrice is the explicit user action: clears the custom override
// and forces a fresh, non-cached lookup. The last calculated price is shown
// as a provisional estimate while the result is pending.
func (e *PriceSyncEngine) RecalculatePrice() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.isCustomPrice = false
	e.onRequestHold = false
	e.status = StatusCalculating
	if e.lastCalculatedPrice != nil {
		e.optimistic.Begin(*e.lastCalculatedPrice)
	}
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.mu.Unlock()

	e.issueLookup(true, models.PriceReasonRecalculation)
}

// Close tears the session down. The booking parameters and the quote's
// persisted price are deliberately untouched.
func (e *PriceSyncEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.stopPendingLocked()
	log.Printf("💰 SyncEngine: session %s closed", e.sessionID)
}

// Snapshot returns the current reactive view for the form/UI layer
func (e *PriceSyncEngine) Snapshot() SyncSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	displayed, provisional := e.optimistic.Displayed()
	var breakdown *models.PriceBreakdown
	if e.lastResolution != nil {
		breakdown = e.lastResolution.Breakdown
	}
	return SyncSnapshot{
		SessionID:          e.sessionID,
		Status:             e.status,
		IsCustomPrice:      e.isCustomPrice,
		DisplayedPrice:     displayed,
		PriceIsProvisional: provisional,
		Breakdown:          breakdown,
		Error:              e.lastError,
		Recovery:           e.recovery,
		ValidationWarnings: append([]string(nil), e.warnings...),
	}
}

// stopPendingLocked cancels the debounce timer and any in-flight lookup.
// Callers must hold e.mu.
func (e *PriceSyncEngine) stopPendingLocked() {
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	if e.cancelPending != nil {
		e.cancelPending()
		e.cancelPending = nil
	}
	// Anything already in flight is superseded
	e.seq++
}

// issueLookup starts an asynchronous lookup for the current parameters,
// superseding any in-flight one
func (e *PriceSyncEngine) issueLookup(fresh bool, reason string) {
	e.mu.Lock()
	if e.closed || e.isCustomPrice {
		// A debounce timer may still fire in the window where the price was
		// just marked custom; suppression wins
		e.mu.Unlock()
		return
	}
	if e.cancelPending != nil {
		e.cancelPending()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelPending = cancel
	e.seq++
	seq := e.seq
	params := e.params
	packageID := e.pkg.ID
	e.mu.Unlock()

	go func() {
		var resolution *pricing.Resolution
		var err error
		if fresh {
			resolution, err = e.client.LookupFresh(ctx, packageID, params)
		} else {
			resolution, err = e.client.Lookup(ctx, packageID, params)
		}
		e.applyResult(seq, resolution, err, reason)
	}()
}

// applyResult reconciles a lookup outcome with the state machine. Results
// from superseded requests are discarded.
func (e *PriceSyncEngine) applyResult(seq uint64, resolution *pricing.Resolution, err error, reason string) {
	e.mu.Lock()
	if e.closed || seq != e.seq {
		e.mu.Unlock()
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancelled because a newer request superseded it
			e.mu.Unlock()
			return
		}
		classified := Classify(err)
		e.status = StatusError
		e.lastError = classified
		e.recovery = Advise(classified, e.handlers)
		e.optimistic.Rollback()
		log.Printf("❌ SyncEngine: session %s lookup failed code=%s retryable=%t context=%v",
			e.sessionID, classified.Code, classified.Retryable, classified.Context)
		e.mu.Unlock()
		return
	}

	e.lastResolution = resolution
	e.lastError = nil
	e.recovery = nil

	if resolution.PriceWasOnRequest {
		// Nothing to sync to; the price field becomes operator-owned
		e.onRequestHold = true
		e.status = StatusCustom
		e.optimistic.Rollback()
		log.Printf("💰 SyncEngine: session %s resolved ON_REQUEST for tier %q period %q",
			e.sessionID, resolution.TierLabel, resolution.PeriodLabel)
		e.mu.Unlock()
		return
	}

	e.onRequestHold = false
	price := *resolution.Price
	e.lastCalculatedPrice = &price

	if utils.ApproxEqual(price, e.currentPrice, e.config.PriceEpsilon) {
		e.status = StatusSynced
		e.optimistic.Confirm(e.currentPrice)
		e.mu.Unlock()
		return
	}

	e.currentPrice = price
	e.optimistic.Confirm(price)
	e.status = StatusSynced
	onUpdate := e.onUpdate
	log.Printf("✅ SyncEngine: session %s applied price %.2f (tier %q, period %q, reason %s)",
		e.sessionID, price, resolution.TierLabel, resolution.PeriodLabel, reason)
	e.mu.Unlock()

	if onUpdate != nil {
		onUpdate(price, reason, resolution)
	}
}

// computeValidationWarnings checks the parameters against the package
// independently of the state machine. Warnings are advisory: they do not
// block submission and coexist with synced or custom status.
func computeValidationWarnings(pkg *models.PricingPackage, params models.BookingParameters) []string {
	var warnings []string

	if params.NumberOfPeople > 0 {
		if _, ok := pricing.FindTier(pkg, params.NumberOfPeople); !ok {
			warnings = append(warnings, (&pricing.TierLimitExceededError{
				RequestedPeople: params.NumberOfPeople,
				MaxPeople:       pricing.MaxTierCapacity(pkg),
			}).Error())
		}
	}
	if params.NumberOfNights > 0 && !pricing.HasDuration(pkg, params.NumberOfNights) {
		warnings = append(warnings, (&pricing.DurationNotAvailableError{
			RequestedNights: params.NumberOfNights,
			AvailableNights: pkg.DurationOptions,
		}).Error())
	}
	if !params.ArrivalDate.IsZero() {
		if _, ok := pricing.FindPeriod(pkg, params.ArrivalDate); !ok {
			warnings = append(warnings, (&pricing.DateOutOfRangeError{
				RequestedDate:    params.ArrivalDate,
				AvailablePeriods: pricing.PeriodLabels(pkg),
			}).Error())
		}
	}
	return warnings
}
