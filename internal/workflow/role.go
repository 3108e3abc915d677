package workflow

import (
	"fmt"
	"strings"
)

// Role is the closed set of user roles known to the system.
type Role string

const (
	RoleAdmin               Role = "ADMIN"
	RoleDepartmentRequester Role = "DEPARTMENT_REQUESTER"
	RoleFinanceApprover     Role = "FINANCE_APPROVER"
	RoleComplianceApprover  Role = "COMPLIANCE_APPROVER"
)

// legacyAdminRole is still issued by older user records.
const legacyAdminRole = "ADMIN_SYSTEM_OWNER"

var allRoles = []Role{RoleAdmin, RoleDepartmentRequester, RoleFinanceApprover, RoleComplianceApprover}

// Roles lists every role.
func Roles() []Role {
	return append([]Role(nil), allRoles...)
}

// ParseRole normalises raw input, mapping the legacy admin alias to ADMIN.
func ParseRole(raw string) (Role, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == legacyAdminRole {
		return RoleAdmin, nil
	}
	r := Role(v)
	if !r.Valid() {
		return "", fmt.Errorf("workflow: unknown role %q", raw)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// DisplayName returns the human readable role label.
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "VMS Admin (General Overseer)"
	case RoleDepartmentRequester:
		return "Department Requester"
	case RoleFinanceApprover:
		return "Finance Approver"
	case RoleComplianceApprover:
		return "Compliance Approver"
	}
	return string(r)
}

func (r Role) String() string { return string(r) }
