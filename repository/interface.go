package repository

import (
	"context"
	"errors"
	"fmt"

	"travel-quotes-backoffice/models"
)

// ErrQuoteNotFound is returned when a quote id does not exist
var ErrQuoteNotFound = errors.New("quote not found")

// ErrPackageNotFound is returned when a package does not exist or is inactive.
// An inactive package is indistinguishable from a missing one for price
// resolution purposes.
var ErrPackageNotFound = errors.New("package not found")

// PackageNotFoundError carries the offending package id alongside the
// sentinel; errors.Is(err, ErrPackageNotFound) still matches
type PackageNotFoundError struct {
	PackageID int64
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %d not found", e.PackageID)
}

func (e *PackageNotFoundError) Unwrap() error {
	return ErrPackageNotFound
}

// QuoteRepositoryInterface defines the contract for quote record operations
type QuoteRepositoryInterface interface {
	Create(ctx context.Context, req *models.CreateQuoteRequest) (*models.Quote, error)
	GetByID(ctx context.Context, id int64) (*models.Quote, error)
	UpdateParameters(ctx context.Context, id int64, params models.BookingParameters) error
	SavePrice(ctx context.Context, quoteID int64, price float64, reason string, actorID string) error
	SetLinkedPackage(ctx context.Context, quoteID int64, info *models.LinkedPackageInfo) error
	UnlinkPackage(ctx context.Context, quoteID int64) error
	GetPriceHistory(ctx context.Context, quoteID int64) ([]models.PriceHistoryEntry, error)
}

// PackageRepositoryInterface defines the contract for pricing package reads
type PackageRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*models.PricingPackage, error)
	List(ctx context.Context) ([]models.PricingPackage, error)
}
