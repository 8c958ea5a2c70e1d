package models

import "time"

// Price change reasons recorded in the quote price history
const (
	PriceReasonPackageSelection = "package_selection"
	PriceReasonRecalculation    = "recalculation"
	PriceReasonManualOverride   = "manual_override"
)

// Quote is a travel quote record as stored in the quotes table
type Quote struct {
	ID             int64              `json:"id"`
	CustomerName   string             `json:"customerName"`
	NumberOfPeople int                `json:"numberOfPeople"`
	NumberOfNights int                `json:"numberOfNights"`
	ArrivalDate    time.Time          `json:"arrivalDate"`
	TotalPrice     float64            `json:"totalPrice"`
	Currency       string             `json:"currency"`
	LinkedPackage  *LinkedPackageInfo `json:"linkedPackage,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// BookingParameters extracts the resolution inputs stored on the quote
func (q *Quote) BookingParameters() BookingParameters {
	return BookingParameters{
		NumberOfPeople: q.NumberOfPeople,
		NumberOfNights: q.NumberOfNights,
		ArrivalDate:    q.ArrivalDate,
	}
}

// PriceHistoryEntry is one append-only row of a quote's price audit trail
type PriceHistoryEntry struct {
	ID        int64     `json:"id"`
	QuoteID   int64     `json:"quoteId"`
	Price     float64   `json:"price"`
	Reason    string    `json:"reason"`
	ActorID   string    `json:"actorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateQuoteRequest is the payload for creating a quote
type CreateQuoteRequest struct {
	CustomerName   string `json:"customerName"`
	NumberOfPeople int    `json:"numberOfPeople"`
	NumberOfNights int    `json:"numberOfNights"`
	ArrivalDate    string `json:"arrivalDate"`
	Currency       string `json:"currency"`
}

// UpdateParametersRequest is the payload for a booking-parameter edit
type UpdateParametersRequest struct {
	NumberOfPeople int    `json:"numberOfPeople"`
	NumberOfNights int    `json:"numberOfNights"`
	ArrivalDate    string `json:"arrivalDate"`
}

// LinkPackageRequest is the payload for linking a pricing package to a quote
type LinkPackageRequest struct {
	PackageID int64  `json:"packageId"`
	ActorID   string `json:"actorId"`
}

// ManualPriceRequest is the payload for a direct price-field edit
type ManualPriceRequest struct {
	Price float64 `json:"price"`
}
