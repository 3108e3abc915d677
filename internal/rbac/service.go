package rbac

import (
	"fmt"
	"strings"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Service answers authorization questions for authenticated principals.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

// Grants returns the role to capability matrix.
func (s *Service) Grants() []Grant {
	roles := workflow.Roles()
	out := make([]Grant, 0, len(roles))
	for _, role := range roles {
		out = append(out, Grant{Role: role, RoleName: role.DisplayName(), Capabilities: workflow.CapabilitiesOf(role)})
	}
	return out
}

// Authorize checks the principal against required capabilities. With all set
// every capability is needed, otherwise any one suffices.
func (s *Service) Authorize(p *shared.Principal, all bool, caps ...workflow.Capability) error {
	if p == nil {
		return httpx.ErrUnauthorized
	}
	if len(caps) == 0 {
		return nil
	}
	var missing []string
	for _, c := range caps {
		if workflow.Allows(p.Role, c) {
			if !all {
				return nil
			}
			continue
		}
		missing = append(missing, string(c))
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: role %s lacks %s", httpx.ErrForbidden, p.Role, strings.Join(missing, ", "))
}
