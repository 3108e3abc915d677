package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	directory Directory
	sessions  SessionStore
	tokens    *TokenIssuer
	lookups   singleflight.Group
}

// NewService constructs a new Service.
func NewService(directory Directory, sessions SessionStore, tokens *TokenIssuer) *Service {
	return &Service{directory: directory, sessions: sessions, tokens: tokens}
}

// Login validates username/password credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string, meta ClientMeta) (*LoginResult, error) {
	user, err := s.directory.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInactiveUser
	}
	sess, err := s.sessions.Create(ctx, shared.Session{
		UserID:     user.ID,
		Username:   user.Username,
		RemoteAddr: meta.RemoteAddr,
		UserAgent:  meta.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}
	token, err := s.tokens.Issue(user.ID, sess.ID, string(user.Role), sess.ExpiresAt)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: user.Profile()}, nil
}

// Authenticate resolves a bearer token into the calling principal. The role
// is read from the directory so role changes apply without a new login.
func (s *Service) Authenticate(ctx context.Context, raw string) (*shared.Principal, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", httpx.ErrUnauthorized)
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, shared.ErrSessionNotFound
	}
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInactiveUser
	}
	return &shared.Principal{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: sess.ID,
	}, nil
}

// Logout revokes the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// Profile returns the public profile of the principal.
func (s *Service) Profile(ctx context.Context, p *shared.Principal) (users.Profile, error) {
	user, err := s.directory.Get(ctx, p.UserID)
	if err != nil {
		return users.Profile{}, err
	}
	return user.Profile(), nil
}

// lookupUser collapses concurrent directory reads for the same user, which
// happen when a client fans out several requests with one token.
func (s *Service) lookupUser(ctx context.Context, id int64) (*users.User, error) {
	ch := s.lookups.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return s.directory.Get(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		user := *res.Val.(*users.User)
		return &user, nil
	}
}
