package pricing

import (
	"fmt"
	"strings"
	"time"

	"travel-quotes-backoffice/models"
)

// Resolution is the successful outcome of resolving a package matrix against
// booking parameters. When PriceWasOnRequest is true there is no fixed price
// and Breakdown is nil; that is still a success, the caller decides how to
// present it.
type Resolution struct {
	Price             *float64               `json:"price"`
	PriceWasOnRequest bool                   `json:"priceWasOnRequest"`
	TierIndex         int                    `json:"tierIndex"`
	TierLabel         string                 `json:"tierLabel"`
	PeriodLabel       string                 `json:"periodLabel"`
	PackageVersion    int                    `json:"packageVersion"`
	Breakdown         *models.PriceBreakdown `json:"breakdown,omitempty"`
}

// LinkedPackageInfo builds the persistable snapshot for a quote linked to pkg
func (r *Resolution) LinkedPackageInfo(pkg *models.PricingPackage) *models.LinkedPackageInfo {
	info := &models.LinkedPackageInfo{
		PackageID:      pkg.ID,
		PackageVersion: pkg.Version,
		TierIndex:      r.TierIndex,
		TierLabel:      r.TierLabel,
		PeriodLabel:    r.PeriodLabel,
	}
	if r.Price != nil {
		info.OriginalPrice = *r.Price
	}
	return info
}

// TierLimitExceededError: no tier covers the requested group size
type TierLimitExceededError struct {
	RequestedPeople int
	MaxPeople       int
}

func (e *TierLimitExceededError) Error() string {
	return fmt.Sprintf("group size %d exceeds the largest tier (max %d people)", e.RequestedPeople, e.MaxPeople)
}

// DurationNotAvailableError: the package does not offer the requested nights
type DurationNotAvailableError struct {
	RequestedNights int
	AvailableNights []int
}

func (e *DurationNotAvailableError) Error() string {
	return fmt.Sprintf("duration of %d nights is not offered (available: %v)", e.RequestedNights, e.AvailableNights)
}

// DateOutOfRangeError: no period in the matrix covers the arrival date
type DateOutOfRangeError struct {
	RequestedDate    time.Time
	AvailablePeriods []string
}

func (e *DateOutOfRangeError) Error() string {
	return fmt.Sprintf("arrival date %s is not covered by any pricing period (available: %s)",
		e.RequestedDate.Format("2006-01-02"), strings.Join(e.AvailablePeriods, ", "))
}

// InvalidParametersError: the booking parameters are not resolvable at all
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid booking parameters: %s", e.Reason)
}

// FindTier returns the index of the tier covering the group size, or false.
// Tier boundaries are inclusive on both ends.
func FindTier(pkg *models.PricingPackage, numberOfPeople int) (int, bool) {
	for i, tier := range pkg.Tiers {
		if numberOfPeople >= tier.MinPeople && numberOfPeople <= tier.MaxPeople {
			return i, true
		}
	}
	return 0, false
}

// MaxTierCapacity returns the largest MaxPeople across the package's tiers
func MaxTierCapacity(pkg *models.PricingPackage) int {
	max := 0
	for _, tier := range pkg.Tiers {
		if tier.MaxPeople > max {
			max = tier.MaxPeople
		}
	}
	return max
}

// HasDuration reports whether the package offers the requested nights
func HasDuration(pkg *models.PricingPackage, nights int) bool {
	for _, option := range pkg.DurationOptions {
		if option == nights {
			return true
		}
	}
	return false
}

// FindPeriod selects the matrix period covering the arrival date.
// Special-range periods always win over calendar-month periods for a date
// inside both; among matching specials the first in matrix order wins.
func FindPeriod(pkg *models.PricingPackage, date time.Time) (*models.PeriodEntry, bool) {
	for i := range pkg.Matrix {
		period := &pkg.Matrix[i]
		if period.Type == models.PeriodTypeSpecialRange && period.ContainsDate(date) {
			return period, true
		}
	}
	for i := range pkg.Matrix {
		period := &pkg.Matrix[i]
		if period.Type == models.PeriodTypeCalendarMonth && period.ContainsDate(date) {
			return period, true
		}
	}
	return nil, false
}

// PeriodLabels returns the labels of every period in matrix order
func PeriodLabels(pkg *models.PricingPackage) []string {
	labels := make([]string, 0, len(pkg.Matrix))
	for _, period := range pkg.Matrix {
		labels = append(labels, period.Label)
	}
	return labels
}

// Resolve deterministically resolves a price for the given booking parameters
// against the package's tiered, period-based matrix. Pure: no I/O, no state,
// identical input always yields identical output.
//
// Resolution order: tier by group size, duration membership, period by arrival
// date (specials before months), then the (tier, nights) cell. A missing cell
// is treated as ON_REQUEST, not a failure, since matrix authors may
// intentionally omit cells.
func Resolve(pkg *models.PricingPackage, params models.BookingParameters) (*Resolution, error) {
	if params.NumberOfPeople <= 0 {
		return nil, &InvalidParametersError{Reason: fmt.Sprintf("numberOfPeople must be positive, got %d", params.NumberOfPeople)}
	}
	if params.NumberOfNights <= 0 {
		return nil, &InvalidParametersError{Reason: fmt.Sprintf("numberOfNights must be positive, got %d", params.NumberOfNights)}
	}
	if params.ArrivalDate.IsZero() {
		return nil, &InvalidParametersError{Reason: "arrivalDate is required"}
	}
	if len(pkg.Tiers) == 0 {
		return nil, &InvalidParametersError{Reason: fmt.Sprintf("package %d has no group size tiers", pkg.ID)}
	}

	tierIndex, ok := FindTier(pkg, params.NumberOfPeople)
	if !ok {
		return nil, &TierLimitExceededError{
			RequestedPeople: params.NumberOfPeople,
			MaxPeople:       MaxTierCapacity(pkg),
		}
	}

	if !HasDuration(pkg, params.NumberOfNights) {
		return nil, &DurationNotAvailableError{
			RequestedNights: params.NumberOfNights,
			AvailableNights: append([]int(nil), pkg.DurationOptions...),
		}
	}

	period, ok := FindPeriod(pkg, params.ArrivalDate)
	if !ok {
		return nil, &DateOutOfRangeError{
			RequestedDate:    params.ArrivalDate,
			AvailablePeriods: PeriodLabels(pkg),
		}
	}

	resolution := &Resolution{
		TierIndex:      tierIndex,
		TierLabel:      pkg.Tiers[tierIndex].Label,
		PeriodLabel:    period.Label,
		PackageVersion: pkg.Version,
	}

	cell := findCell(period, tierIndex, params.NumberOfNights)
	if cell == nil || cell.Price.OnRequest {
		resolution.PriceWasOnRequest = true
		return resolution, nil
	}

	// Price cells are already total-for-tier; per-person is derived, kept
	// unrounded, and rounded only for display.
	price := cell.Price.Amount
	resolution.Price = &price
	resolution.Breakdown = &models.PriceBreakdown{
		PricePerPerson: price / float64(params.NumberOfPeople),
		NumberOfPeople: params.NumberOfPeople,
		TotalPrice:     price,
		TierUsed:       pkg.Tiers[tierIndex].Label,
		PeriodUsed:     period.Label,
		Currency:       pkg.Currency,
	}
	return resolution, nil
}

// findCell locates the price cell for (tierIndex, nights) within a period
func findCell(period *models.PeriodEntry, tierIndex int, nights int) *models.PriceCell {
	for i := range period.Cells {
		cell := &period.Cells[i]
		if cell.TierIndex == tierIndex && cell.Nights == nights {
			return cell
		}
	}
	return nil
}
