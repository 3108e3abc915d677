package rbac

import "github.com/da-luiz/Clear-Chain/internal/workflow"

// Grant lists the capabilities held by a role.
type Grant struct {
	Role         workflow.Role         `json:"role"`
	RoleName     string                `json:"roleName"`
	Capabilities []workflow.Capability `json:"capabilities"`
}
