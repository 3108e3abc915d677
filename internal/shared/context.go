package shared

import (
	"context"

	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID    int64
	Username  string
	Role      workflow.Role
	SessionID string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
