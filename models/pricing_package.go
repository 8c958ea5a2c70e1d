package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Period types used in a pricing matrix
const (
	PeriodTypeCalendarMonth = "calendar-month"
	PeriodTypeSpecialRange  = "special-range"
)

// Package status values
const (
	PackageStatusActive   = "active"
	PackageStatusInactive = "inactive"
)

// OnRequestSentinel is the value matrix authors put in a price cell when the
// price has to be negotiated per booking instead of read from the matrix.
const OnRequestSentinel = "ON_REQUEST"

// DateOnly is a calendar date (no time component) serialized as "2006-01-02"
type DateOnly struct {
	time.Time
}

// ParseDateOnly parses an ISO date string ("2006-01-02") into a DateOnly
func ParseDateOnly(s string) (DateOnly, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return DateOnly{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOnly{Time: t}, nil
}

// MarshalJSON serializes the date as "2006-01-02"
func (d DateOnly) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// UnmarshalJSON parses a "2006-01-02" string
func (d *DateOnly) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDateOnly(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Contains reports whether date falls inside [d, end], comparing dates only
func (d DateOnly) Contains(end DateOnly, date time.Time) bool {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && !day.After(last)
}

// PriceValue is either a numeric total-for-tier price or the ON_REQUEST marker.
// It is a closed sum type: callers must check OnRequest before using Amount.
type PriceValue struct {
	OnRequest bool
	Amount    float64
}

// NumericPrice builds a PriceValue holding a fixed price
func NumericPrice(amount float64) PriceValue {
	return PriceValue{Amount: amount}
}

// OnRequestPrice builds the on-request marker value
func OnRequestPrice() PriceValue {
	return PriceValue{OnRequest: true}
}

// MarshalJSON writes the numeric amount, or the "ON_REQUEST" string
func (p PriceValue) MarshalJSON() ([]byte, error) {
	if p.OnRequest {
		return json.Marshal(OnRequestSentinel)
	}
	return json.Marshal(p.Amount)
}

// UnmarshalJSON accepts a JSON number or the "ON_REQUEST" string
func (p *PriceValue) UnmarshalJSON(data []byte) error {
	var amount float64
	if err := json.Unmarshal(data, &amount); err == nil {
		*p = PriceValue{Amount: amount}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("price cell must be a number or %q: %w", OnRequestSentinel, err)
	}
	if strings.ToUpper(strings.TrimSpace(s)) != OnRequestSentinel {
		return fmt.Errorf("unrecognized price cell value %q", s)
	}
	*p = PriceValue{OnRequest: true}
	return nil
}

// GroupSizeTier is a group-size bracket with its own price column in the matrix.
// Tiers are contiguous, non-overlapping and ordered ascending by MinPeople;
// the package-authoring subsystem enforces that before a package is published.
type GroupSizeTier struct {
	Label     string `json:"label"`
	MinPeople int    `json:"minPeople"`
	MaxPeople int    `json:"maxPeople"`
}

// PriceCell holds the total price for one (tier, nights) combination
type PriceCell struct {
	TierIndex int        `json:"tierIndex"`
	Nights    int        `json:"nights"`
	Price     PriceValue `json:"price"`
}

// PeriodEntry is one row of the pricing matrix: either a calendar month (Month
// set, matched in any year) or an explicit special date range (StartDate/EndDate
// set). Specials carve exceptions out of default months, so they take precedence.
type PeriodEntry struct {
	Label     string      `json:"label"`
	Type      string      `json:"type"`
	Month     int         `json:"month,omitempty"`
	StartDate *DateOnly   `json:"startDate,omitempty"`
	EndDate   *DateOnly   `json:"endDate,omitempty"`
	Cells     []PriceCell `json:"cells"`
}

// ContainsDate reports whether the arrival date falls inside this period
func (p *PeriodEntry) ContainsDate(date time.Time) bool {
	switch p.Type {
	case PeriodTypeCalendarMonth:
		return int(date.Month()) == p.Month
	case PeriodTypeSpecialRange:
		if p.StartDate == nil || p.EndDate == nil {
			return false
		}
		return p.StartDate.Contains(*p.EndDate, date)
	default:
		return false
	}
}

// PricingPackage identifies one version of a published pricing package.
// Read-only to the sync engine; authored and imported elsewhere.
type PricingPackage struct {
	ID              int64           `json:"id"`
	Version         int             `json:"version"`
	Name            string          `json:"name"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Tiers           []GroupSizeTier `json:"tiers"`
	DurationOptions []int           `json:"durationOptions"`
	Matrix          []PeriodEntry   `json:"matrix"`
}

// IsActive reports whether the package can be used for price resolution
func (p *PricingPackage) IsActive() bool {
	return p.Status == PackageStatusActive
}
