package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/repository"
	"travel-quotes-backoffice/service"
)

// QuoteController handles HTTP requests for travel quotes and their
// price-sync sessions
type QuoteController struct {
	quotes   repository.QuoteRepositoryInterface
	sessions *service.QuoteSessionManager
}

// NewQuoteController creates a new QuoteController
func NewQuoteController(quotes repository.QuoteRepositoryInterface, sessions *service.QuoteSessionManager) *QuoteController {
	return &QuoteController{
		quotes:   quotes,
		sessions: sessions,
	}
}

// CreateQuote handles POST /admin/quotes
// Example request:
// {
//   "customerName": "Ana Torres",
//   "numberOfPeople": 4,
//   "numberOfNights": 3,
//   "arrivalDate": "2025-01-10",
//   "currency": "GBP"
// }
func (c *QuoteController) CreateQuote(w http.ResponseWriter, r *http.Request) {
	log.Printf("📥 CreateQuote: Received %s request to %s", r.Method, r.URL.Path)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CreateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ CreateQuote: Failed to decode request body: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	ctx := context.Background()
	quote, err := c.quotes.Create(ctx, &req)
	if err != nil {
		log.Printf("❌ CreateQuote: Error creating quote: %v", err)
		http.Error(w, fmt.Sprintf("Failed to create quote: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// GetQuote handles GET /admin/quotes/:id
func (c *QuoteController) GetQuote(w http.ResponseWriter, r *http.Request, quoteID int64) {
	ctx := context.Background()
	quote, err := c.quotes.GetByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			http.Error(w, "Quote not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ GetQuote: Error fetching quote %d: %v", quoteID, err)
		http.Error(w, fmt.Sprintf("Failed to fetch quote: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// GetPriceHistory handles GET /admin/quotes/:id/history
func (c *QuoteController) GetPriceHistory(w http.ResponseWriter, r *http.Request, quoteID int64) {
	ctx := context.Background()
	entries, err := c.quotes.GetPriceHistory(ctx, quoteID)
	if err != nil {
		log.Printf("❌ GetPriceHistory: Error fetching history for quote %d: %v", quoteID, err)
		http.Error(w, fmt.Sprintf("Failed to fetch price history: %v", err), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.PriceHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// LinkPackage handles POST /admin/quotes/:id/link-package
// Example request: {"packageId": 7, "actorId": "erika"}
func (c *QuoteController) LinkPackage(w http.ResponseWriter, r *http.Request, quoteID int64) {
	log.Printf("📥 LinkPackage: Received %s request to %s", r.Method, r.URL.Path)

	var req models.LinkPackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ LinkPackage: Failed to decode request body: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.PackageID <= 0 {
		http.Error(w, "packageId is required", http.StatusBadRequest)
		return
	}

	ctx := context.Background()
	engine, err := c.sessions.LinkPackage(ctx, quoteID, req.PackageID, req.ActorID)
	if err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			http.Error(w, "Quote not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrPackageNotFound) {
			http.Error(w, "Package not found or inactive", http.StatusNotFound)
			return
		}
		log.Printf("❌ LinkPackage: Error linking package %d to quote %d: %v", req.PackageID, quoteID, err)
		http.Error(w, fmt.Sprintf("Failed to link package: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, engine.Snapshot())
}

// UnlinkPackage handles POST /admin/quotes/:id/unlink-package.
// Booking parameters and the stored price are preserved; only the package
// link is cleared.
func (c *QuoteController) UnlinkPackage(w http.ResponseWriter, r *http.Request, quoteID int64) {
	log.Printf("📥 UnlinkPackage: Received %s request to %s", r.Method, r.URL.Path)

	ctx := context.Background()
	if err := c.sessions.UnlinkPackage(ctx, quoteID); err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			http.Error(w, "Quote not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ UnlinkPackage: Error unlinking quote %d: %v", quoteID, err)
		http.Error(w, fmt.Sprintf("Failed to unlink package: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}

// UpdateParameters handles PUT /admin/quotes/:id/parameters
// Example request: {"numberOfPeople": 7, "numberOfNights": 2, "arrivalDate": "2025-01-10"}
func (c *QuoteController) UpdateParameters(w http.ResponseWriter, r *http.Request, quoteID int64) {
	log.Printf("📥 UpdateParameters: Received %s request to %s", r.Method, r.URL.Path)

	var req models.UpdateParametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ UpdateParameters: Failed to decode request body: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	arrival, err := models.ParseDateOnly(req.ArrivalDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid arrivalDate: %v", err), http.StatusBadRequest)
		return
	}

	params := models.BookingParameters{
		NumberOfPeople: req.NumberOfPeople,
		NumberOfNights: req.NumberOfNights,
		ArrivalDate:    arrival.Time,
	}

	ctx := context.Background()
	if err := c.sessions.UpdateParameters(ctx, quoteID, params); err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			http.Error(w, "Quote not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ UpdateParameters: Error updating quote %d: %v", quoteID, err)
		http.Error(w, fmt.Sprintf("Failed to update parameters: %v", err), http.StatusInternalServerError)
		return
	}

	c.writeSnapshotOrStatus(w, quoteID)
}

// SetPrice handles PUT /admin/quotes/:id/price (direct price-field edit)
func (c *QuoteController) SetPrice(w http.ResponseWriter, r *http.Request, quoteID int64) {
	log.Printf("📥 SetPrice: Received %s request to %s", r.Method, r.URL.Path)

	var req models.ManualPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ SetPrice: Failed to decode request body: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Price < 0 {
		http.Error(w, "price cannot be negative", http.StatusBadRequest)
		return
	}

	ctx := context.Background()
	if err := c.sessions.SetManualPrice(ctx, quoteID, req.Price, actorFromRequest(r)); err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			http.Error(w, "Quote not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ SetPrice: Error setting price for quote %d: %v", quoteID, err)
		http.Error(w, fmt.Sprintf("Failed to set price: %v", err), http.StatusInternalServerError)
		return
	}

	c.writeSnapshotOrStatus(w, quoteID)
}

// Recalculate handles POST /admin/quotes/:id/recalculate (explicit user action)
func (c *QuoteController) Recalculate(w http.ResponseWriter, r *http.Request, quoteID int64) {
	engine, ok := c.sessions.Get(quoteID)
	if !ok {
		http.Error(w, "No open editing session for quote", http.StatusConflict)
		return
	}

	engine.RecalculatePrice()
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

// ResetPrice handles POST /admin/quotes/:id/reset-price
func (c *QuoteController) ResetPrice(w http.ResponseWriter, r *http.Request, quoteID int64) {
	engine, ok := c.sessions.Get(quoteID)
	if !ok {
		http.Error(w, "No open editing session for quote", http.StatusConflict)
		return
	}

	engine.ResetToCalculated()
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

// MarkCustom handles POST /admin/quotes/:id/mark-custom
func (c *QuoteController) MarkCustom(w http.ResponseWriter, r *http.Request, quoteID int64) {
	engine, ok := c.sessions.Get(quoteID)
	if !ok {
		http.Error(w, "No open editing session for quote", http.StatusConflict)
		return
	}

	engine.MarkAsCustomPrice()
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

// GetSyncState handles GET /admin/quotes/:id/sync
func (c *QuoteController) GetSyncState(w http.ResponseWriter, r *http.Request, quoteID int64) {
	engine, ok := c.sessions.Get(quoteID)
	if !ok {
		http.Error(w, "No open editing session for quote", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, engine.Snapshot())
}

// CloseSession handles POST /admin/quotes/:id/close-session
func (c *QuoteController) CloseSession(w http.ResponseWriter, r *http.Request, quoteID int64) {
	c.sessions.CloseSession(quoteID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// writeSnapshotOrStatus returns the live sync snapshot when a session is
// open, otherwise a plain ok
func (c *QuoteController) writeSnapshotOrStatus(w http.ResponseWriter, quoteID int64) {
	if engine, ok := c.sessions.Get(quoteID); ok {
		writeJSON(w, http.StatusOK, engine.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ParseQuoteID extracts the quote id from a path like /admin/quotes/12/sync
func ParseQuoteID(path string) (int64, string, error) {
	trimmed := strings.TrimPrefix(path, "/admin/quotes/")
	parts := strings.SplitN(trimmed, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid quote id %q", parts[0])
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, nil
}

// actorFromRequest reads the acting operator from the X-Actor-ID header
func actorFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor-ID"))
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ writeJSON: Error encoding response: %v", err)
	}
}
