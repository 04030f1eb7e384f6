/*
errors.go - Error types for the requisition workflow

PURPOSE:
  Calculation and validation never return errors. Errors only come from
  workflow transitions: a step that is not allowed from the current
  status, or a submit/authorize blocked by invalid line items.

USAGE:
  if err := req.Apply(requisition.ActionSubmit, v); err != nil {
      var lie *requisition.LineItemErrors
      if errors.As(err, &lie) { ... lie.Errors ... }
  }

SEE ALSO:
  - status.go: Transitions
  - validation.go: ValidateRequisition
*/
package requisition

import (
	"errors"
	"fmt"

	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/messages"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when a workflow step is not allowed
	// from the requisition's current status.
	ErrInvalidTransition = errors.New("requisition: invalid status transition")

	// ErrInvalidLineItems is returned when submit or authorize finds line
	// items with validation errors.
	ErrInvalidLineItems = errors.New("requisition: line items have errors")

	// ErrRequisitionNotFound is returned when a referenced requisition doesn't exist.
	ErrRequisitionNotFound = errors.New("requisition: not found")

	// ErrLineItemNotFound is returned when a referenced line item doesn't exist.
	ErrLineItemNotFound = errors.New("requisition: line item not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// TransitionError names the refused step.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("requisition: cannot %s from %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// LineItemErrors carries the validation failures that blocked a step.
type LineItemErrors struct {
	RequisitionID string
	Errors        map[string]map[catalog.Name]*messages.Message
}

func (e *LineItemErrors) Error() string {
	return fmt.Sprintf("requisition %s: %d line items have errors", e.RequisitionID, len(e.Errors))
}

func (e *LineItemErrors) Unwrap() error {
	return ErrInvalidLineItems
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing requisition or line item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequisitionNotFound) ||
		errors.Is(err, ErrLineItemNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidLineItems)
}
