package auth

import (
	"context"
	"time"

	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/users"
)

// Directory resolves accounts for authentication.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
}

// SessionStore persists revocable sessions behind issued tokens.
type SessionStore interface {
	Create(ctx context.Context, sess shared.Session) (shared.Session, error)
	Get(ctx context.Context, id string) (*shared.Session, error)
	Delete(ctx context.Context, id string) error
	TTL() time.Duration
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      users.Profile `json:"user"`
}

// ClientMeta describes where a login came from.
type ClientMeta struct {
	RemoteAddr string
	UserAgent  string
}
