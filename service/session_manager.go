package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/pricing"
	"travel-quotes-backoffice/repository"
)

// quoteSession ties an engine to the actor who opened it
type quoteSession struct {
	engine  *PriceSyncEngine
	actorID string
}

// QuoteSessionManager owns one PriceSyncEngine per open quote-editing
// session and wires its price-update side effects to the quote store.
// SyncState is per session; only the lookup cache inside the shared client
// is cross-session.
type QuoteSessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*quoteSession

	client       *PriceLookupClient
	quotes       repository.QuoteRepositoryInterface
	packages     repository.PackageRepositoryInterface
	engineConfig EngineConfig
}

// NewQuoteSessionManager creates a new QuoteSessionManager
func NewQuoteSessionManager(client *PriceLookupClient, quotes repository.QuoteRepositoryInterface, packages repository.PackageRepositoryInterface, engineConfig EngineConfig) *QuoteSessionManager {
	return &QuoteSessionManager{
		sessions:     make(map[int64]*quoteSession),
		client:       client,
		quotes:       quotes,
		packages:     packages,
		engineConfig: engineConfig,
	}
}

// LinkPackage links a pricing package to a quote and opens the editing
// session. The engine starts in calculating state and persists the resolved
// price and linked-package snapshot when the initial lookup lands.
func (m *QuoteSessionManager) LinkPackage(ctx context.Context, quoteID int64, packageID int64, actorID string) (*PriceSyncEngine, error) {
	quote, err := m.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	pkg, err := m.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive() {
		return nil, fmt.Errorf("package is inactive: %w", &repository.PackageNotFoundError{PackageID: packageID})
	}

	m.mu.Lock()
	if existing, ok := m.sessions[quoteID]; ok {
		existing.engine.Close()
		delete(m.sessions, quoteID)
	}
	m.mu.Unlock()

	onUpdate := func(price float64, reason string, resolution *pricing.Resolution) {
		// Side effects run outside any HTTP request; same pattern as the
		// controllers, a background context per operation
		bg := context.Background()
		if resolution != nil {
			if err := m.quotes.SetLinkedPackage(bg, quoteID, resolution.LinkedPackageInfo(pkg)); err != nil {
				log.Printf("❌ SessionManager: failed to store package snapshot for quote %d: %v", quoteID, err)
			}
		}
		if err := m.quotes.SavePrice(bg, quoteID, price, reason, actorID); err != nil {
			log.Printf("❌ SessionManager: failed to save price %.2f for quote %d: %v", price, quoteID, err)
		}
	}

	engine := NewPriceSyncEngine(pkg, quote.BookingParameters(), quote.TotalPrice, m.client, onUpdate, nil, m.engineConfig)

	m.mu.Lock()
	m.sessions[quoteID] = &quoteSession{engine: engine, actorID: actorID}
	m.mu.Unlock()

	log.Printf("✅ SessionManager: quote %d linked to package %d by %s", quoteID, packageID, actorID)
	return engine, nil
}

// UnlinkPackage tears down the session and clears the stored snapshot. The
// booking parameters and the quote's price are preserved untouched: nothing
// is recomputed or blanked on unlink.
func (m *QuoteSessionManager) UnlinkPackage(ctx context.Context, quoteID int64) error {
	m.mu.Lock()
	if session, ok := m.sessions[quoteID]; ok {
		session.engine.Close()
		delete(m.sessions, quoteID)
	}
	m.mu.Unlock()

	if err := m.quotes.UnlinkPackage(ctx, quoteID); err != nil {
		return err
	}
	log.Printf("✅ SessionManager: quote %d unlinked", quoteID)
	return nil
}

// UpdateParameters persists a booking-parameter edit and feeds it to the
// engine if a session is open
func (m *QuoteSessionManager) UpdateParameters(ctx context.Context, quoteID int64, params models.BookingParameters) error {
	if err := m.quotes.UpdateParameters(ctx, quoteID, params); err != nil {
		return err
	}
	if engine, ok := m.Get(quoteID); ok {
		engine.SetParameters(params)
	}
	return nil
}

// SetManualPrice applies a direct price-field edit. Without an open session
// the price is saved as a manual override directly.
func (m *QuoteSessionManager) SetManualPrice(ctx context.Context, quoteID int64, price float64, actorID string) error {
	if engine, ok := m.Get(quoteID); ok {
		engine.SetPrice(price)
		return nil
	}
	return m.quotes.SavePrice(ctx, quoteID, price, models.PriceReasonManualOverride, actorID)
}

// Get returns the open engine for a quote, if any
func (m *QuoteSessionManager) Get(quoteID int64) (*PriceSyncEngine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[quoteID]
	if !ok {
		return nil, false
	}
	return session.engine, true
}

// CloseSession ends the editing session (quote saved or closed) without
// touching the quote record
func (m *QuoteSessionManager) CloseSession(quoteID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[quoteID]; ok {
		session.engine.Close()
		delete(m.sessions, quoteID)
	}
}
