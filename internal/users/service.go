package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	DeleteUser(ctx context.Context, userID int64) error
}

// Service implements user directory and administration rules.
type Service struct {
	repo     Repository
	sessions SessionRevoker
	logger   *slog.Logger
	validate *validator.Validate
	cost     int
}

// NewService constructs a Service. sessions may be nil.
func NewService(repo Repository, sessions SessionRevoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, logger: logger, validate: validator.New(), cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, used by tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// FindByUsername returns a user by login name.
func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.FindByUsername(ctx, username)
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.Page[User], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[User]{}, err
	}
	if items == nil {
		items = []User{}
	}
	return shared.Page[User]{
		Items:      items,
		Pagination: shared.NewPagination(filter.Offset/filter.Limit+1, filter.Limit, total),
	}, nil
}

// Create validates and stores a new active user.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	role, err := workflow.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
		DepartmentID: in.DepartmentID,
		IsActive:     true,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", slog.Int64("user_id", user.ID), slog.String("role", string(role)))
	return user, nil
}

// ChangeRole assigns a new role. Admins cannot change their own role.
func (s *Service) ChangeRole(ctx context.Context, actorID, id int64, raw string) (*User, error) {
	role, err := workflow.ParseRole(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if actorID == id {
		return nil, ErrSelfModification
	}
	user, err := s.repo.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.revoke(ctx, id)
	return user, nil
}

// SetActive activates or deactivates a user. Deactivation revokes sessions.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) (*User, error) {
	if actorID == id {
		return nil, ErrSelfModification
	}
	user, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	if !active {
		s.revoke(ctx, id)
	}
	return user, nil
}

// EnsureAdmin creates the first administrator when the directory is empty.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = s.Create(ctx, CreateInput{
		Username:  username,
		Email:     username + "@localhost.localdomain",
		FirstName: "System",
		LastName:  "Administrator",
		Password:  password,
		Role:      string(workflow.RoleAdmin),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) revoke(ctx context.Context, id int64) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DeleteUser(ctx, id); err != nil {
		s.logger.Warn("revoke user sessions", slog.Any("error", err), slog.Int64("user_id", id))
	}
}
