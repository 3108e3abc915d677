package shared

import (
	"fmt"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	// ErrInactiveUser is returned when a deactivated account is used.
	ErrInactiveUser = fmt.Errorf("%w: user inactive", httpx.ErrUnauthorized)
	// ErrSessionNotFound indicates the session was revoked or expired.
	ErrSessionNotFound = fmt.Errorf("%w: session not found", httpx.ErrUnauthorized)
)
