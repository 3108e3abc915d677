// Package workflow holds the vendor request lifecycle: statuses, roles,
// capabilities and the transition table. It performs no I/O.
package workflow

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a vendor creation request.
type Status string

const (
	StatusDraft                   Status = "DRAFT"
	StatusPendingComplianceReview Status = "PENDING_COMPLIANCE_REVIEW"
	StatusPendingFinanceReview    Status = "PENDING_FINANCE_REVIEW"
	StatusPendingAdminReview      Status = "PENDING_ADMIN_REVIEW"
	StatusActive                  Status = "ACTIVE"
	StatusRejectedByCompliance    Status = "REJECTED_BY_COMPLIANCE"
	StatusRejectedByFinance       Status = "REJECTED_BY_FINANCE"
	StatusRejectedByAdmin         Status = "REJECTED_BY_ADMIN"
	StatusCancelled               Status = "CANCELLED"
)

var allStatuses = []Status{
	StatusDraft,
	StatusPendingComplianceReview,
	StatusPendingFinanceReview,
	StatusPendingAdminReview,
	StatusActive,
	StatusRejectedByCompliance,
	StatusRejectedByFinance,
	StatusRejectedByAdmin,
	StatusCancelled,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus normalises raw input into a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("workflow: unknown status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is part of the closed enumeration.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusActive, StatusRejectedByCompliance, StatusRejectedByFinance, StatusRejectedByAdmin, StatusCancelled:
		return true
	}
	return false
}

// IsPendingReview reports whether s waits on one of the reviewing stages.
func (s Status) IsPendingReview() bool {
	_, ok := StageOf(s)
	return ok
}

// IsRejected reports whether s is one of the rejection exits.
func (s Status) IsRejected() bool {
	return s == StatusRejectedByCompliance || s == StatusRejectedByFinance || s == StatusRejectedByAdmin
}

func (s Status) String() string { return string(s) }
