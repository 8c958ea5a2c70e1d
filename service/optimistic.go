package service

import "sync"

// OptimisticUpdateCoordinator keeps the price shown to the operator useful
// while a recalculation is pending: an estimate is surfaced immediately and
// flagged provisional, then reconciled with the authoritative result or
// rolled back to the last confirmed price on failure. A stale optimistic
// value is never left visible after an error.
type OptimisticUpdateCoordinator struct {
	mu            sync.Mutex
	displayed     float64
	provisional   bool
	lastConfirmed float64
}

// NewOptimisticUpdateCoordinator starts from a confirmed price
func NewOptimisticUpdateCoordinator(confirmed float64) *OptimisticUpdateCoordinator {
	return &OptimisticUpdateCoordinator{
		displayed:     confirmed,
		lastConfirmed: confirmed,
	}
}

// Begin surfaces an estimate while the authoritative result is pending
func (o *OptimisticUpdateCoordinator) Begin(estimate float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.displayed = estimate
	o.provisional = true
}

// Confirm reconciles the display with the authoritative price
func (o *OptimisticUpdateCoordinator) Confirm(actual float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.displayed = actual
	o.lastConfirmed = actual
	o.provisional = false
}

// Rollback reverts the display to the last confirmed price
func (o *OptimisticUpdateCoordinator) Rollback() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.displayed = o.lastConfirmed
	o.provisional = false
}

// Displayed returns the currently visible price and whether it is provisional
func (o *OptimisticUpdateCoordinator) Displayed() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.displayed, o.provisional
}
