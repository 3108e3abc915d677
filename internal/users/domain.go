package users

import (
	"fmt"
	"time"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = fmt.Errorf("user %w", httpx.ErrNotFound)
	// ErrDuplicateUsername is returned when the username is taken.
	ErrDuplicateUsername = fmt.Errorf("%w: username already exists", httpx.ErrDuplicate)
	// ErrUnknownDepartment is returned when departmentId names no department.
	ErrUnknownDepartment = fmt.Errorf("%w: department does not exist", httpx.ErrValidation)
	// ErrSelfModification blocks admins from demoting or deactivating themselves.
	ErrSelfModification = fmt.Errorf("%w: cannot change own role or status", httpx.ErrConflict)
)

// User is an account of the vendor management system.
type User struct {
	ID           int64         `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Role         workflow.Role `json:"role"`
	DepartmentID *int64        `json:"departmentId,omitempty"`
	IsActive     bool          `json:"active"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Profile is the public view of a user returned to clients.
type Profile struct {
	UserID       int64         `json:"userId"`
	Username     string        `json:"username"`
	Email        string        `json:"email,omitempty"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Role         workflow.Role `json:"role"`
	RoleName     string        `json:"roleName"`
	DepartmentID *int64        `json:"departmentId,omitempty"`
}

// Profile projects the user into its public view.
func (u User) Profile() Profile {
	return Profile{
		UserID:       u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		RoleName:     u.Role.DisplayName(),
		DepartmentID: u.DepartmentID,
	}
}

// CreateInput captures an admin's request to add a user.
type CreateInput struct {
	Username     string `json:"username" validate:"required,min=3,max=64,printascii"`
	Email        string `json:"email" validate:"required,email"`
	FirstName    string `json:"firstName" validate:"max=100"`
	LastName     string `json:"lastName" validate:"max=100"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Role         string `json:"role" validate:"required"`
	DepartmentID *int64 `json:"departmentId" validate:"omitempty,gt=0"`
}

// ListFilter narrows user listings.
type ListFilter struct {
	Role   workflow.Role
	Limit  int
	Offset int
}
