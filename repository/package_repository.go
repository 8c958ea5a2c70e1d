package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"travel-quotes-backoffice/db"
	"travel-quotes-backoffice/models"
)

// PackageRepository handles database reads for pricing packages. Packages
// are authored and imported by a separate subsystem; this side only loads
// published rows.
type PackageRepository struct{}

// NewPackageRepository creates a new PackageRepository
func NewPackageRepository() *PackageRepository {
	return &PackageRepository{}
}

// Ensure PackageRepository implements PackageRepositoryInterface
var _ PackageRepositoryInterface = (*PackageRepository)(nil)

// GetByID retrieves a pricing package with its tiers, duration options and
// matrix decoded from JSONB
func (r *PackageRepository) GetByID(ctx context.Context, id int64) (*models.PricingPackage, error) {
	query := `
		SELECT id, version, name, currency, status, tiers, duration_options, matrix
		FROM pricing_packages
		WHERE id = $1
	`

	var pkg models.PricingPackage
	var tiers, durations, matrix []byte

	err := db.DB.QueryRowContext(ctx, query, id).Scan(
		&pkg.ID,
		&pkg.Version,
		&pkg.Name,
		&pkg.Currency,
		&pkg.Status,
		&tiers,
		&durations,
		&matrix,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &PackageNotFoundError{PackageID: id}
		}
		log.Printf("❌ GetByID: Error fetching package %d: %v", id, err)
		return nil, fmt.Errorf("failed to fetch package: %w", err)
	}

	if err := decodePackagePayload(&pkg, tiers, durations, matrix); err != nil {
		log.Printf("❌ GetByID: Error decoding package %d: %v", id, err)
		return nil, err
	}

	return &pkg, nil
}

// List returns all pricing packages, newest version of each first
func (r *PackageRepository) List(ctx context.Context) ([]models.PricingPackage, error) {
	query := `
		SELECT id, version, name, currency, status, tiers, duration_options, matrix
		FROM pricing_packages
		ORDER BY name ASC, version DESC
	`

	rows, err := db.DB.QueryContext(ctx, query)
	if err != nil {
		log.Printf("❌ List: Error fetching packages: %v", err)
		return nil, fmt.Errorf("failed to fetch packages: %w", err)
	}
	defer rows.Close()

	var packages []models.PricingPackage
	for rows.Next() {
		var pkg models.PricingPackage
		var tiers, durations, matrix []byte
		if err := rows.Scan(&pkg.ID, &pkg.Version, &pkg.Name, &pkg.Currency, &pkg.Status, &tiers, &durations, &matrix); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		if err := decodePackagePayload(&pkg, tiers, durations, matrix); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}

	return packages, rows.Err()
}

// decodePackagePayload unmarshals the JSONB columns into the package model
func decodePackagePayload(pkg *models.PricingPackage, tiers, durations, matrix []byte) error {
	if err := json.Unmarshal(tiers, &pkg.Tiers); err != nil {
		return fmt.Errorf("failed to parse tiers for package %d: %w", pkg.ID, err)
	}
	if err := json.Unmarshal(durations, &pkg.DurationOptions); err != nil {
		return fmt.Errorf("failed to parse duration options for package %d: %w", pkg.ID, err)
	}
	if err := json.Unmarshal(matrix, &pkg.Matrix); err != nil {
		return fmt.Errorf("failed to parse matrix for package %d: %w", pkg.ID, err)
	}
	return nil
}
