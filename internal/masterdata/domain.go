package masterdata

import (
	"fmt"
	"time"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
)

var (
	// ErrDepartmentNotFound indicates an unknown department id.
	ErrDepartmentNotFound = fmt.Errorf("department %w", httpx.ErrNotFound)
	// ErrCategoryNotFound indicates an unknown vendor category id.
	ErrCategoryNotFound = fmt.Errorf("vendor category %w", httpx.ErrNotFound)
)

// Department is the organisational unit a vendor request is filed for.
type Department struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category classifies vendors. It shares the department layout so rows scan
// the same way.
type Category struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
