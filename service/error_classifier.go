package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"travel-quotes-backoffice/pricing"
	"travel-quotes-backoffice/repository"
)

// ErrorCode is the stable identifier of a classified calculation failure.
// The set is closed: every failure raised during a price lookup maps to
// exactly one of these codes, and the codes survive JSON serialization so
// the transport layer can pass them through losslessly.
type ErrorCode string

const (
	CodePackageNotFound      ErrorCode = "PACKAGE_NOT_FOUND"
	CodeDurationNotAvailable ErrorCode = "DURATION_NOT_AVAILABLE"
	CodeTierLimitExceeded    ErrorCode = "TIER_LIMIT_EXCEEDED"
	CodeDateOutOfRange       ErrorCode = "DATE_OUT_OF_RANGE"
	CodeInvalidParameters    ErrorCode = "INVALID_PARAMETERS"
	CodeNetworkError         ErrorCode = "NETWORK_ERROR"
	CodeCalculationTimeout   ErrorCode = "CALCULATION_TIMEOUT"
	CodeCalculationError     ErrorCode = "CALCULATION_ERROR"
)

// ClassifiedError is a typed calculation failure with structured context.
// Retryable means a retry with the same parameters could succeed; domain
// validation failures are never retryable, they need different parameters.
type ClassifiedError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Classify converts any failure raised during a price lookup into a
// ClassifiedError. Domain failures from the resolver map 1:1 to their named
// codes; transport and deadline failures are retryable; anything unrecognized
// becomes a retryable CALCULATION_ERROR so the user always gets another chance.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	// Already classified, e.g. re-surfaced across a serialization boundary
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var tierErr *pricing.TierLimitExceededError
	if errors.As(err, &tierErr) {
		return &ClassifiedError{
			Code:    CodeTierLimitExceeded,
			Message: tierErr.Error(),
			Context: map[string]interface{}{
				"requestedPeople": tierErr.RequestedPeople,
				"maxPeople":       tierErr.MaxPeople,
			},
		}
	}

	var durationErr *pricing.DurationNotAvailableError
	if errors.As(err, &durationErr) {
		return &ClassifiedError{
			Code:    CodeDurationNotAvailable,
			Message: durationErr.Error(),
			Context: map[string]interface{}{
				"requestedNights": durationErr.RequestedNights,
				"availableNights": durationErr.AvailableNights,
			},
		}
	}

	var dateErr *pricing.DateOutOfRangeError
	if errors.As(err, &dateErr) {
		return &ClassifiedError{
			Code:    CodeDateOutOfRange,
			Message: dateErr.Error(),
			Context: map[string]interface{}{
				"requestedDate":    dateErr.RequestedDate.Format("2006-01-02"),
				"availablePeriods": dateErr.AvailablePeriods,
			},
		}
	}

	var paramsErr *pricing.InvalidParametersError
	if errors.As(err, &paramsErr) {
		return &ClassifiedError{
			Code:    CodeInvalidParameters,
			Message: paramsErr.Error(),
			Context: map[string]interface{}{
				"reason": paramsErr.Reason,
			},
		}
	}

	var notFoundErr *repository.PackageNotFoundError
	if errors.As(err, &notFoundErr) {
		return &ClassifiedError{
			Code:    CodePackageNotFound,
			Message: err.Error(),
			Context: map[string]interface{}{
				"packageId": notFoundErr.PackageID,
			},
		}
	}
	if errors.Is(err, repository.ErrPackageNotFound) {
		return &ClassifiedError{
			Code:    CodePackageNotFound,
			Message: err.Error(),
		}
	}

	if errors.Is(err, ErrLookupTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{
			Code:      CodeCalculationTimeout,
			Message:   "price calculation exceeded its deadline",
			Retryable: true,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ClassifiedError{
			Code:      CodeNetworkError,
			Message:   fmt.Sprintf("price lookup transport failed: %v", netErr),
			Retryable: true,
		}
	}

	// Fail safe toward giving the user another chance
	return &ClassifiedError{
		Code:      CodeCalculationError,
		Message:   fmt.Sprintf("price calculation failed: %v", err),
		Retryable: true,
	}
}
