package workflow

import (
	"fmt"
	"strings"
)

// Action is a user-triggered operation on a vendor request.
type Action string

const (
	ActionEditDraft         Action = "edit_draft"
	ActionSubmit            Action = "submit"
	ActionCancel            Action = "cancel"
	ActionAddBanking        Action = "add_banking_details"
	ActionApproveCompliance Action = "approve_compliance"
	ActionRejectCompliance  Action = "reject_compliance"
	ActionApproveFinance    Action = "approve_finance"
	ActionRejectFinance     Action = "reject_finance"
	ActionApproveAdmin      Action = "approve_admin"
	ActionRejectAdmin       Action = "reject_admin"
	ActionRequestInfo       Action = "request_info"
)

// Stage is one of the three reviewing authorities.
type Stage string

const (
	StageCompliance Stage = "compliance"
	StageFinance    Stage = "finance"
	StageAdmin      Stage = "admin"
)

// ParseStage accepts the lower-case stage names used in URLs.
func ParseStage(raw string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(raw))) {
	case StageCompliance:
		return StageCompliance, nil
	case StageFinance:
		return StageFinance, nil
	case StageAdmin:
		return StageAdmin, nil
	}
	return "", fmt.Errorf("workflow: unknown stage %q", raw)
}

// StageOf returns the stage currently reviewing a request in status s.
func StageOf(s Status) (Stage, bool) {
	switch s {
	case StatusPendingComplianceReview:
		return StageCompliance, true
	case StatusPendingFinanceReview:
		return StageFinance, true
	case StatusPendingAdminReview:
		return StageAdmin, true
	}
	return "", false
}

// Capability returns the capability that authorises reviews at the stage.
func (st Stage) Capability() Capability {
	switch st {
	case StageCompliance:
		return CapReviewCompliance
	case StageFinance:
		return CapReviewFinance
	case StageAdmin:
		return CapReviewAdmin
	}
	return ""
}

// ApproveAction returns the approve action of the stage.
func (st Stage) ApproveAction() Action {
	switch st {
	case StageCompliance:
		return ActionApproveCompliance
	case StageFinance:
		return ActionApproveFinance
	case StageAdmin:
		return ActionApproveAdmin
	}
	return ""
}

// RejectAction returns the reject action of the stage.
func (st Stage) RejectAction() Action {
	switch st {
	case StageCompliance:
		return ActionRejectCompliance
	case StageFinance:
		return ActionRejectFinance
	case StageAdmin:
		return ActionRejectAdmin
	}
	return ""
}

// RequiresReason reports whether the action must carry non-blank text.
func (a Action) RequiresReason() bool {
	switch a {
	case ActionRejectCompliance, ActionRejectFinance, ActionRejectAdmin, ActionRequestInfo:
		return true
	}
	return false
}

// IsReview reports whether the action is an approve or reject decision.
func (a Action) IsReview() bool {
	switch a {
	case ActionApproveCompliance, ActionRejectCompliance,
		ActionApproveFinance, ActionRejectFinance,
		ActionApproveAdmin, ActionRejectAdmin:
		return true
	}
	return false
}

// IsRejection reports whether the action rejects the request.
func (a Action) IsRejection() bool {
	return a == ActionRejectCompliance || a == ActionRejectFinance || a == ActionRejectAdmin
}

// Subject is the slice of request state the machine looks at.
type Subject struct {
	Status  Status
	Banking BankingDetails
}

// Input carries the caller supplied part of a transition.
type Input struct {
	Reason string
}

type rule struct {
	action     Action
	to         Status
	capability Capability
	guard      func(Subject) error
}

func requireBanking(s Subject) error {
	if s.Banking.Complete() {
		return nil
	}
	return fmt.Errorf("%w: banking details incomplete, missing %s", ErrPreconditionFailed, strings.Join(s.Banking.Missing(), ", "))
}

// rules is keyed by every status; terminal statuses map to no rules.
var rules = map[Status][]rule{
	StatusDraft: {
		{action: ActionEditDraft, to: StatusDraft, capability: CapRequestsEditDraft},
		{action: ActionSubmit, to: StatusPendingComplianceReview, capability: CapRequestsSubmit},
		{action: ActionCancel, to: StatusCancelled, capability: CapRequestsCancel},
	},
	StatusPendingComplianceReview: {
		{action: ActionApproveCompliance, to: StatusPendingFinanceReview, capability: CapReviewCompliance},
		{action: ActionRejectCompliance, to: StatusRejectedByCompliance, capability: CapReviewCompliance},
		{action: ActionRequestInfo, to: StatusPendingComplianceReview, capability: CapReviewCompliance},
	},
	StatusPendingFinanceReview: {
		{action: ActionAddBanking, to: StatusPendingFinanceReview, capability: CapBankingDetails},
		{action: ActionApproveFinance, to: StatusPendingAdminReview, capability: CapReviewFinance, guard: requireBanking},
		{action: ActionRejectFinance, to: StatusRejectedByFinance, capability: CapReviewFinance},
		{action: ActionRequestInfo, to: StatusPendingFinanceReview, capability: CapReviewFinance},
	},
	StatusPendingAdminReview: {
		{action: ActionApproveAdmin, to: StatusActive, capability: CapReviewAdmin},
		{action: ActionRejectAdmin, to: StatusRejectedByAdmin, capability: CapReviewAdmin},
		{action: ActionRequestInfo, to: StatusPendingAdminReview, capability: CapReviewAdmin},
	},
	StatusActive:               nil,
	StatusRejectedByCompliance: nil,
	StatusRejectedByFinance:    nil,
	StatusRejectedByAdmin:      nil,
	StatusCancelled:            nil,
}

func lookup(from Status, action Action) (rule, bool) {
	for _, r := range rules[from] {
		if r.action == action {
			return r, true
		}
	}
	return rule{}, false
}

// Next validates action against subject and role and returns the resulting
// status. Status mismatch and missing capability both yield
// ErrInvalidTransition; a blank reason yields ErrMissingReason; incomplete
// banking on finance approval yields ErrPreconditionFailed.
func Next(subject Subject, action Action, role Role, in Input) (Status, error) {
	r, ok := lookup(subject.Status, action)
	if !ok {
		return subject.Status, fmt.Errorf("%w: %s is not allowed from %s", ErrInvalidTransition, action, subject.Status)
	}
	if !Allows(role, r.capability) {
		return subject.Status, fmt.Errorf("%w: role %s cannot %s", ErrInvalidTransition, role, action)
	}
	if action.RequiresReason() && strings.TrimSpace(in.Reason) == "" {
		return subject.Status, ErrMissingReason
	}
	if r.guard != nil {
		if err := r.guard(subject); err != nil {
			return subject.Status, err
		}
	}
	return r.to, nil
}

// Check is Next without the resulting status.
func Check(subject Subject, action Action, role Role, in Input) error {
	_, err := Next(subject, action, role, in)
	return err
}

// LegalActions returns the actions role may take on subject right now, in
// table order. Reason requirements are not evaluated here because they
// depend on input.
func LegalActions(role Role, subject Subject) []Action {
	var out []Action
	for _, r := range rules[subject.Status] {
		if !Allows(role, r.capability) {
			continue
		}
		if r.guard != nil && r.guard(subject) != nil {
			continue
		}
		out = append(out, r.action)
	}
	return out
}

// ApproveActionFor picks the approve action for the stage reviewing status.
func ApproveActionFor(status Status) (Action, error) {
	st, ok := StageOf(status)
	if !ok {
		return "", fmt.Errorf("%w: request in %s cannot be approved", ErrInvalidTransition, status)
	}
	return st.ApproveAction(), nil
}

// RejectActionFor picks the reject action for the stage reviewing status.
func RejectActionFor(status Status) (Action, error) {
	st, ok := StageOf(status)
	if !ok {
		return "", fmt.Errorf("%w: request in %s cannot be rejected", ErrInvalidTransition, status)
	}
	return st.RejectAction(), nil
}
