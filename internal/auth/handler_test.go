package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/da-luiz/Clear-Chain/internal/auth"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
	_ "github.com/da-luiz/Clear-Chain/testing"
)

type stubDirectory struct {
	users map[int64]*users.User
}

func (s *stubDirectory) FindByUsername(_ context.Context, username string) (*users.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (s *stubDirectory) Get(_ context.Context, id int64) (*users.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fixture struct {
	router    http.Handler
	directory *stubDirectory
	mr        *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	dir := &stubDirectory{users: map[int64]*users.User{
		7: {ID: 7, Username: "fiona", FirstName: "Fiona", LastName: "Reyes", Role: workflow.RoleFinanceApprover, IsActive: true, PasswordHash: string(hash)},
		8: {ID: 8, Username: "gone", Role: workflow.RoleDepartmentRequester, IsActive: false, PasswordHash: string(hash)},
	}}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := shared.NewSessionStore(client, time.Hour)
	svc := auth.NewService(dir, store, auth.NewTokenIssuer("test-secret"))
	handler := auth.NewHandler(nil, svc)
	mw := auth.Middleware{Service: svc}

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		handler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(mw.Require)
			handler.MountProtectedRoutes(r)
		})
	})
	return &fixture{router: r, directory: dir, mr: mr}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *fixture) login(t *testing.T, username, password string) auth.LoginResult {
	t.Helper()
	res := f.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var out auth.LoginResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func TestLoginReturnsTokenAndProfile(t *testing.T) {
	f := newFixture(t)
	out := f.login(t, "FIONA", "correct-pass")
	require.NotEmpty(t, out.Token)
	require.Equal(t, int64(7), out.User.UserID)
	require.Equal(t, workflow.RoleFinanceApprover, out.User.Role)
	require.Equal(t, "Finance Approver", out.User.RoleName)
	require.Len(t, f.mr.Keys(), 2)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{
		`{"username":"fiona","password":"wrong-pass"}`,
		`{"username":"nobody","password":"correct-pass"}`,
		`{"username":"gone","password":"correct-pass"}`,
	} {
		res := f.do(t, http.MethodPost, "/api/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, res.Code, body)
		require.Contains(t, res.Body.String(), `"code":"unauthorized"`)
	}
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"fiona"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = f.do(t, http.MethodPost, "/api/auth/login", "", `{"user":"fiona"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMeUsesCurrentRole(t *testing.T) {
	f := newFixture(t)
	out := f.login(t, "fiona", "correct-pass")

	f.directory.users[7].Role = workflow.RoleComplianceApprover
	res := f.do(t, http.MethodGet, "/api/auth/me", out.Token, "")
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		User        users.Profile        `json:"user"`
		Permissions workflow.Permissions `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, workflow.RoleComplianceApprover, body.User.Role)
	require.True(t, body.Permissions.ReviewCompliance)
	require.False(t, body.Permissions.ReviewFinance)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	out := f.login(t, "fiona", "correct-pass")

	res := f.do(t, http.MethodPost, "/api/auth/logout", out.Token, "")
	require.Equal(t, http.StatusNoContent, res.Code)

	res = f.do(t, http.MethodGet, "/api/auth/me", out.Token, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireRejectsMissingAndForgedTokens(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodGet, "/api/auth/me", "", "")
	require.Equal(t, http.StatusUnauthorized, res.Code)

	forged, err := auth.NewTokenIssuer("other-secret").Issue(7, "sid", "ADMIN", time.Now().Add(time.Hour))
	require.NoError(t, err)
	res = f.do(t, http.MethodGet, "/api/auth/me", forged, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	f := newFixture(t)
	out := f.login(t, "fiona", "correct-pass")
	f.directory.users[7].IsActive = false

	res := f.do(t, http.MethodGet, "/api/auth/me", out.Token, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/vendor-requests/stream?access_token=abc", nil)
	require.Empty(t, auth.BearerToken(req))
	req.Header.Set("Upgrade", "websocket")
	require.Equal(t, "abc", auth.BearerToken(req))
	req.Header.Set("Authorization", "bearer xyz")
	require.Equal(t, "xyz", auth.BearerToken(req))
	req.Header.Set("Authorization", "Basic xyz")
	require.Empty(t, auth.BearerToken(req))
}
