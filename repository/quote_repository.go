package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"travel-quotes-backoffice/db"
	"travel-quotes-backoffice/models"
)

// QuoteRepository handles database operations for travel quotes
type QuoteRepository struct{}

// NewQuoteRepository creates a new QuoteRepository
func NewQuoteRepository() *QuoteRepository {
	return &QuoteRepository{}
}

// Ensure QuoteRepository implements QuoteRepositoryInterface
var _ QuoteRepositoryInterface = (*QuoteRepository)(nil)

// Create creates a new quote
func (r *QuoteRepository) Create(ctx context.Context, req *models.CreateQuoteRequest) (*models.Quote, error) {
	log.Printf("📦 Create: Creating quote for customer=%s, people=%d, nights=%d",
		req.CustomerName, req.NumberOfPeople, req.NumberOfNights)

	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, fmt.Errorf("customer_name cannot be empty")
	}
	if req.NumberOfPeople <= 0 {
		return nil, fmt.Errorf("number_of_people must be greater than 0")
	}
	if req.NumberOfNights <= 0 {
		return nil, fmt.Errorf("number_of_nights must be greater than 0")
	}

	arrival, err := models.ParseDateOnly(req.ArrivalDate)
	if err != nil {
		return nil, fmt.Errorf("invalid arrival_date: %w", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "GBP"
	}

	query := `
		INSERT INTO quotes (customer_name, number_of_people, number_of_nights, arrival_date, total_price, currency)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING id, customer_name, number_of_people, number_of_nights, arrival_date, total_price, currency, created_at, updated_at
	`

	var quote models.Quote
	err = db.DB.QueryRowContext(ctx, query,
		req.CustomerName,
		req.NumberOfPeople,
		req.NumberOfNights,
		arrival.Time,
		currency,
	).Scan(
		&quote.ID,
		&quote.CustomerName,
		&quote.NumberOfPeople,
		&quote.NumberOfNights,
		&quote.ArrivalDate,
		&quote.TotalPrice,
		&quote.Currency,
		&quote.CreatedAt,
		&quote.UpdatedAt,
	)
	if err != nil {
		log.Printf("❌ Create: Error creating quote: %v", err)
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	log.Printf("✅ Create: Successfully created quote id=%d", quote.ID)
	return &quote, nil
}

// GetByID retrieves a quote with its linked package snapshot
func (r *QuoteRepository) GetByID(ctx context.Context, id int64) (*models.Quote, error) {
	query := `
		SELECT id, customer_name, number_of_people, number_of_nights, arrival_date,
		       total_price, currency, linked_package, created_at, updated_at
		FROM quotes
		WHERE id = $1
	`

	var quote models.Quote
	var linkedPackage []byte

	err := db.DB.QueryRowContext(ctx, query, id).Scan(
		&quote.ID,
		&quote.CustomerName,
		&quote.NumberOfPeople,
		&quote.NumberOfNights,
		&quote.ArrivalDate,
		&quote.TotalPrice,
		&quote.Currency,
		&linkedPackage,
		&quote.CreatedAt,
		&quote.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("quote %d: %w", id, ErrQuoteNotFound)
		}
		log.Printf("❌ GetByID: Error fetching quote %d: %v", id, err)
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}

	if len(linkedPackage) > 0 {
		var info models.LinkedPackageInfo
		if err := json.Unmarshal(linkedPackage, &info); err != nil {
			log.Printf("❌ GetByID: Error parsing linked package for quote %d: %v", id, err)
			return nil, fmt.Errorf("failed to parse linked package: %w", err)
		}
		quote.LinkedPackage = &info
	}

	return &quote, nil
}

// UpdateParameters updates the booking parameters of a quote
func (r *QuoteRepository) UpdateParameters(ctx context.Context, id int64, params models.BookingParameters) error {
	log.Printf("📦 UpdateParameters: quote=%d people=%d nights=%d arrival=%s",
		id, params.NumberOfPeople, params.NumberOfNights, params.ArrivalDate.Format("2006-01-02"))

	if params.NumberOfPeople <= 0 {
		return fmt.Errorf("number_of_people must be greater than 0")
	}
	if params.NumberOfNights <= 0 {
		return fmt.Errorf("number_of_nights must be greater than 0")
	}

	query := `
		UPDATE quotes
		SET number_of_people = $1, number_of_nights = $2, arrival_date = $3, updated_at = NOW()
		WHERE id = $4
	`
	result, err := db.DB.ExecContext(ctx, query, params.NumberOfPeople, params.NumberOfNights, params.ArrivalDate, id)
	if err != nil {
		log.Printf("❌ UpdateParameters: Error updating quote %d: %v", id, err)
		return fmt.Errorf("failed to update parameters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("quote %d: %w", id, ErrQuoteNotFound)
	}
	return nil
}

// SavePrice updates the quote's price and appends a price history entry in
// one transaction. History is append-only: entries are never updated or
// deleted.
func (r *QuoteRepository) SavePrice(ctx context.Context, quoteID int64, price float64, reason string, actorID string) error {
	log.Printf("📦 SavePrice: quote=%d price=%.2f reason=%s actor=%s", quoteID, price, reason, actorID)

	switch reason {
	case models.PriceReasonPackageSelection, models.PriceReasonRecalculation, models.PriceReasonManualOverride:
	default:
		return fmt.Errorf("invalid price change reason: %s", reason)
	}

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("❌ SavePrice: Error starting transaction: %v", err)
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE quotes SET total_price = $1, updated_at = NOW() WHERE id = $2`,
		price, quoteID,
	)
	if err != nil {
		log.Printf("❌ SavePrice: Error updating quote %d: %v", quoteID, err)
		return fmt.Errorf("failed to update price: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("quote %d: %w", quoteID, ErrQuoteNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quote_price_history (quote_id, price, reason, actor_id) VALUES ($1, $2, $3, $4)`,
		quoteID, price, reason, sql.NullString{String: actorID, Valid: actorID != ""},
	)
	if err != nil {
		log.Printf("❌ SavePrice: Error appending history for quote %d: %v", quoteID, err)
		return fmt.Errorf("failed to append price history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price update: %w", err)
	}

	log.Printf("✅ SavePrice: Saved price %.2f for quote %d", price, quoteID)
	return nil
}

// SetLinkedPackage stores the linked-package snapshot on the quote
func (r *QuoteRepository) SetLinkedPackage(ctx context.Context, quoteID int64, info *models.LinkedPackageInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal linked package: %w", err)
	}

	result, err := db.DB.ExecContext(ctx,
		`UPDATE quotes SET linked_package = $1, updated_at = NOW() WHERE id = $2`,
		data, quoteID,
	)
	if err != nil {
		log.Printf("❌ SetLinkedPackage: Error updating quote %d: %v", quoteID, err)
		return fmt.Errorf("failed to set linked package: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("quote %d: %w", quoteID, ErrQuoteNotFound)
	}
	return nil
}

// UnlinkPackage clears only the linked-package snapshot. Booking parameters
// and the stored price are preserved untouched.
func (r *QuoteRepository) UnlinkPackage(ctx context.Context, quoteID int64) error {
	log.Printf("📦 UnlinkPackage: quote=%d", quoteID)

	result, err := db.DB.ExecContext(ctx,
		`UPDATE quotes SET linked_package = NULL, updated_at = NOW() WHERE id = $1`,
		quoteID,
	)
	if err != nil {
		log.Printf("❌ UnlinkPackage: Error updating quote %d: %v", quoteID, err)
		return fmt.Errorf("failed to unlink package: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("quote %d: %w", quoteID, ErrQuoteNotFound)
	}
	return nil
}

// GetPriceHistory returns the quote's price audit trail, oldest first
func (r *QuoteRepository) GetPriceHistory(ctx context.Context, quoteID int64) ([]models.PriceHistoryEntry, error) {
	query := `
		SELECT id, quote_id, price, reason, actor_id, created_at
		FROM quote_price_history
		WHERE quote_id = $1
		ORDER BY id ASC
	`

	rows, err := db.DB.QueryContext(ctx, query, quoteID)
	if err != nil {
		log.Printf("❌ GetPriceHistory: Error fetching history for quote %d: %v", quoteID, err)
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	defer rows.Close()

	var entries []models.PriceHistoryEntry
	for rows.Next() {
		var entry models.PriceHistoryEntry
		var actorID sql.NullString
		if err := rows.Scan(&entry.ID, &entry.QuoteID, &entry.Price, &entry.Reason, &actorID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		if actorID.Valid {
			entry.ActorID = actorID.String
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
