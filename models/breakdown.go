package models

// PriceBreakdown is the derived result of a successful matrix resolution.
// It is replaced wholesale on every recalculation, never mutated in place.
// PricePerPerson is stored unrounded; rounding happens only at display time.
type PriceBreakdown struct {
	PricePerPerson float64 `json:"pricePerPerson"`
	NumberOfPeople int     `json:"numberOfPeople"`
	TotalPrice     float64 `json:"totalPrice"`
	TierUsed       string  `json:"tierUsed"`
	PeriodUsed     string  `json:"periodUsed"`
	Currency       string  `json:"currency"`
}
