package service

import (
	"context"
	"fmt"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/pricing"
	"travel-quotes-backoffice/repository"
)

// PriceSource resolves a price for a package and booking parameters. It
// stands in for the network boundary: in production this is the co-located
// package store plus the matrix resolver, but the lookup client treats it as
// an asynchronous, fallible call either way. Failures propagate raw for the
// error classifier to type.
type PriceSource interface {
	Resolve(ctx context.Context, packageID int64, params models.BookingParameters) (*pricing.Resolution, error)
}

// PackageStorePriceSource resolves prices against packages loaded from the
// package repository. An inactive package is treated as not found.
type PackageStorePriceSource struct {
	packages repository.PackageRepositoryInterface
}

// NewPackageStorePriceSource creates a new PackageStorePriceSource
func NewPackageStorePriceSource(packages repository.PackageRepositoryInterface) *PackageStorePriceSource {
	return &PackageStorePriceSource{packages: packages}
}

// Ensure PackageStorePriceSource implements PriceSource
var _ PriceSource = (*PackageStorePriceSource)(nil)

// Resolve loads the package and runs the matrix resolver
func (s *PackageStorePriceSource) Resolve(ctx context.Context, packageID int64, params models.BookingParameters) (*pricing.Resolution, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive() {
		return nil, fmt.Errorf("package is inactive: %w", &repository.PackageNotFoundError{PackageID: packageID})
	}
	return pricing.Resolve(pkg, params)
}
