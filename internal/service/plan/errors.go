package plan

import (
	"errors"
	"fmt"

	"github.com/ignite/retail-planner/internal/domain"
)

// Sentinel errors for the plan service layer.
var (
	ErrNotFound         = errors.New("plan not found")
	ErrItemNotFound     = errors.New("plan item not found")
	ErrValidation       = errors.New("validation failed")
	ErrStateConflict    = errors.New("plan state conflict")
	ErrLocked           = errors.New("plan is locked by another operation")
	ErrPartialExecution = errors.New("plan execution incomplete")
)

// StateError reports an action attempted in the wrong lifecycle state.
type StateError struct {
	PlanID   string
	Current  domain.PlanStatus
	Required domain.PlanStatus
	Action   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s plan %s: status is %s, requires %s", e.Action, e.PlanID, e.Current, e.Required)
}

func (e *StateError) Is(target error) bool { return target == ErrStateConflict }

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func requireStatus(p *domain.CampaignPlan, required domain.PlanStatus, action string) error {
	if p.Status != required {
		return &StateError{PlanID: p.ID, Current: p.Status, Required: required, Action: action}
	}
	return nil
}
