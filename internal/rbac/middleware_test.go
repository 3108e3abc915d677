package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/da-luiz/Clear-Chain/internal/rbac"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

func serve(t *testing.T, h func(http.Handler) http.Handler, p *shared.Principal) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
	}
	res := httptest.NewRecorder()
	h(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(res, req)
	return res.Code
}

func TestRequireAny(t *testing.T) {
	m := rbac.Middleware{Service: rbac.NewService()}
	finance := &shared.Principal{UserID: 1, Role: workflow.RoleFinanceApprover}

	require.Equal(t, http.StatusOK, serve(t, m.RequireAny(workflow.CapReviewFinance, workflow.CapReviewAdmin), finance))
	require.Equal(t, http.StatusForbidden, serve(t, m.RequireAny(workflow.CapUsersManage), finance))
	require.Equal(t, http.StatusUnauthorized, serve(t, m.RequireAny(workflow.CapUsersManage), nil))
}

func TestRequireAll(t *testing.T) {
	m := rbac.Middleware{Service: rbac.NewService()}
	compliance := &shared.Principal{UserID: 2, Role: workflow.RoleComplianceApprover}
	admin := &shared.Principal{UserID: 3, Role: workflow.RoleAdmin}

	caps := []workflow.Capability{workflow.CapVendorsEdit, workflow.CapReviewCompliance}
	require.Equal(t, http.StatusOK, serve(t, m.RequireAll(caps...), compliance))
	caps = append(caps, workflow.CapReviewAdmin)
	require.Equal(t, http.StatusForbidden, serve(t, m.RequireAll(caps...), compliance))
	require.Equal(t, http.StatusOK, serve(t, m.RequireAll(caps...), admin))
}

func TestGrantsCoverEveryRole(t *testing.T) {
	grants := rbac.NewService().Grants()
	require.Len(t, grants, len(workflow.Roles()))
	for _, g := range grants {
		require.Equal(t, workflow.CapabilitiesOf(g.Role), g.Capabilities)
		require.NotEmpty(t, g.RoleName)
	}
}
