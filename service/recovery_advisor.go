package service

import "fmt"

// Severity of a recovery plan shown to the operator
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// RecoveryActionType identifies one of the recovery actions the advisor can offer
type RecoveryActionType string

const (
	ActionRetry                  RecoveryActionType = "retry"
	ActionManualPrice            RecoveryActionType = "manual-price"
	ActionUnlinkPackage          RecoveryActionType = "unlink-package"
	ActionAdjustParameters       RecoveryActionType = "adjust-parameters"
	ActionSelectDifferentPackage RecoveryActionType = "select-different-package"
	ActionDismiss                RecoveryActionType = "dismiss"
)

var actionLabels = map[RecoveryActionType]string{
	ActionRetry:                  "Retry calculation",
	ActionManualPrice:            "Enter price manually",
	ActionUnlinkPackage:          "Unlink package",
	ActionAdjustParameters:       "Adjust booking parameters",
	ActionSelectDifferentPackage: "Choose a different package",
	ActionDismiss:                "Dismiss",
}

// RecoveryHandlers binds action types to behavior at advise time. Missing
// entries fall back to a no-op so invoking any offered action is always safe.
type RecoveryHandlers map[RecoveryActionType]func()

// RecoveryAction is one actionable choice offered to the operator
type RecoveryAction struct {
	Type    RecoveryActionType `json:"type"`
	Label   string             `json:"label"`
	handler func()
}

// Invoke runs the bound handler; it never panics even without a handler
func (a RecoveryAction) Invoke() {
	if a.handler != nil {
		a.handler()
	}
}

// RecoveryPlan is the user-facing outcome derived from a classified error:
// a severity, a message, and an ordered set of ways forward. There is always
// at least one action; dismiss is always last.
type RecoveryPlan struct {
	Title    string           `json:"title"`
	Severity string           `json:"severity"`
	Message  string           `json:"message"`
	Actions  []RecoveryAction `json:"actions"`
}

// ActionTypes returns the offered action types in order
func (p *RecoveryPlan) ActionTypes() []RecoveryActionType {
	types := make([]RecoveryActionType, 0, len(p.Actions))
	for _, action := range p.Actions {
		types = append(types, action.Type)
	}
	return types
}

// Advise maps a classified error to its recovery plan. The mapping is a
// deterministic table keyed on the error code, not situational judgement.
func Advise(classified *ClassifiedError, handlers RecoveryHandlers) *RecoveryPlan {
	if classified == nil {
		return nil
	}

	var plan *RecoveryPlan
	switch classified.Code {
	case CodePackageNotFound:
		plan = &RecoveryPlan{
			Title:    "Package unavailable",
			Severity: SeverityError,
			Message:  "The linked pricing package no longer exists or has been deactivated.",
			Actions:  buildActions(handlers, ActionSelectDifferentPackage, ActionUnlinkPackage, ActionManualPrice),
		}
	case CodeDurationNotAvailable, CodeTierLimitExceeded, CodeDateOutOfRange, CodeInvalidParameters:
		plan = &RecoveryPlan{
			Title:    "Parameters outside the package",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("The package cannot price these booking parameters: %s", classified.Message),
			Actions:  buildActions(handlers, ActionAdjustParameters, ActionManualPrice),
		}
	case CodeNetworkError, CodeCalculationTimeout, CodeCalculationError:
		plan = &RecoveryPlan{
			Title:    "Price calculation failed",
			Severity: SeverityWarning,
			Message:  "The price could not be calculated. The quote keeps its last confirmed price.",
			Actions:  buildActions(handlers, ActionRetry, ActionManualPrice),
		}
	default:
		plan = &RecoveryPlan{
			Title:    "Price calculation failed",
			Severity: SeverityWarning,
			Message:  classified.Message,
			Actions:  buildActions(handlers, ActionRetry, ActionManualPrice),
		}
	}

	// Dismiss is always the last way out
	plan.Actions = append(plan.Actions, newAction(ActionDismiss, handlers))
	return plan
}

func buildActions(handlers RecoveryHandlers, types ...RecoveryActionType) []RecoveryAction {
	actions := make([]RecoveryAction, 0, len(types)+1)
	for _, t := range types {
		actions = append(actions, newAction(t, handlers))
	}
	return actions
}

func newAction(t RecoveryActionType, handlers RecoveryHandlers) RecoveryAction {
	var handler func()
	if handlers != nil {
		handler = handlers[t]
	}
	return RecoveryAction{
		Type:    t,
		Label:   actionLabels[t],
		handler: handler,
	}
}
