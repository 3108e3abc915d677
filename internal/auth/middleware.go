package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
)

// Middleware authenticates bearer tokens and attaches the principal.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require rejects requests without a valid session with 401.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := BearerToken(r)
		if raw == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", httpx.CodeUnauthorized, "authorization is missing")
			return
		}
		principal, err := m.Service.Authenticate(r.Context(), raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("authenticate", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// BearerToken extracts the access token from the Authorization header. The
// access_token query parameter is honoured for websocket upgrades, which
// cannot carry custom headers from browsers.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
