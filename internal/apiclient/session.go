package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/da-luiz/Clear-Chain/internal/users"
)

// Session is the acting user's credentials and profile. It is passed to the
// client explicitly.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      users.Profile `json:"user"`
}

// Valid reports whether the session carries a token that has not expired.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// FileSessionStore persists a session as JSON between CLI invocations.
type FileSessionStore struct {
	Path string
}

// DefaultSessionPath is ~/.clearchain/session.json.
func DefaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clearchain-session.json"
	}
	return filepath.Join(home, ".clearchain", "session.json")
}

// Load reads the stored session. A missing file yields ErrNoSession.
func (s FileSessionStore) Load() (*Session, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("apiclient: read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("apiclient: decode session: %w", err)
	}
	if !sess.Valid(time.Now()) {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Save writes the session readable by the owner only.
func (s FileSessionStore) Save(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("apiclient: create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, raw, 0o600)
}

// Clear removes the stored session.
func (s FileSessionStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
