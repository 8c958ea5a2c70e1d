package models

import "time"

// BookingParameters are the operator-editable inputs that drive price
// resolution. They live on the quote record; the sync engine reads them but
// never writes them back.
type BookingParameters struct {
	NumberOfPeople int       `json:"numberOfPeople"`
	NumberOfNights int       `json:"numberOfNights"`
	ArrivalDate    time.Time `json:"arrivalDate"`
}

// CacheKeySuffix renders the parameters as a stable cache key fragment
func (p BookingParameters) CacheKeySuffix() string {
	return p.ArrivalDate.Format("2006-01-02")
}

// Equal reports whether two parameter sets resolve identically
func (p BookingParameters) Equal(other BookingParameters) bool {
	return p.NumberOfPeople == other.NumberOfPeople &&
		p.NumberOfNights == other.NumberOfNights &&
		p.ArrivalDate.Format("2006-01-02") == other.ArrivalDate.Format("2006-01-02")
}

// LinkedPackageInfo is the compact snapshot of the package link persisted with
// a quote. It records where the stored price came from, not the live matrix.
type LinkedPackageInfo struct {
	PackageID      int64   `json:"packageId"`
	PackageVersion int     `json:"packageVersion"`
	TierIndex      int     `json:"tierIndex"`
	TierLabel      string  `json:"tierLabel"`
	PeriodLabel    string  `json:"periodLabel"`
	OriginalPrice  float64 `json:"originalPrice"`
}
