package requisition

// =============================================================================
// STATUS LIFECYCLE
// =============================================================================

// Status is the workflow state of a requisition.
type Status string

const (
	StatusInitiated            Status = "INITIATED"
	StatusRejected             Status = "REJECTED"
	StatusSubmitted            Status = "SUBMITTED"
	StatusAuthorized           Status = "AUTHORIZED"
	StatusInApproval           Status = "IN_APPROVAL"
	StatusApproved             Status = "APPROVED"
	StatusReleased             Status = "RELEASED"
	StatusReleasedWithoutOrder Status = "RELEASED_WITHOUT_ORDER"
	StatusSkipped              Status = "SKIPPED"
)

// IsAfterAuthorize reports whether the authorize step has happened. From
// then on packs are shipped for the approved, not the requested, quantity.
func (s Status) IsAfterAuthorize() bool {
	switch s {
	case StatusAuthorized, StatusInApproval, StatusApproved, StatusReleased, StatusReleasedWithoutOrder:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusRejected, StatusSubmitted, StatusAuthorized, StatusInApproval,
		StatusApproved, StatusReleased, StatusReleasedWithoutOrder, StatusSkipped:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Action is a workflow step.
type Action string

const (
	ActionSubmit    Action = "submit"
	ActionAuthorize Action = "authorize"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
)

var transitions = map[Action]struct {
	from []Status
	to   Status
}{
	ActionSubmit:    {from: []Status{StatusInitiated, StatusRejected}, to: StatusSubmitted},
	ActionAuthorize: {from: []Status{StatusSubmitted}, to: StatusAuthorized},
	ActionApprove:   {from: []Status{StatusAuthorized, StatusInApproval}, to: StatusApproved},
	ActionReject:    {from: []Status{StatusSubmitted, StatusAuthorized, StatusInApproval}, to: StatusRejected},
}

// Apply moves r through action. Submit and authorize first validate
// every line item with v and refuse when any has errors.
func (r *Requisition) Apply(action Action, v *Validator) error {
	tr, ok := transitions[action]
	if !ok {
		return &TransitionError{From: r.Status, Action: action}
	}
	allowed := false
	for _, s := range tr.from {
		if s == r.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return &TransitionError{From: r.Status, Action: action}
	}
	if action == ActionSubmit || action == ActionAuthorize {
		if errs := v.ValidateRequisition(r); len(errs) > 0 {
			return &LineItemErrors{RequisitionID: r.ID, Errors: errs}
		}
	}
	r.Status = tr.to
	return nil
}
