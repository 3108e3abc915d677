package vendors

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
)

var (
	// ErrNotFound indicates the vendor does not exist.
	ErrNotFound = fmt.Errorf("vendor %w", httpx.ErrNotFound)
	// ErrDuplicateCode is returned when a vendor code collides.
	ErrDuplicateCode = fmt.Errorf("%w: vendor code already exists", httpx.ErrDuplicate)
	// ErrUnknownCategory is returned when categoryId names no vendor category.
	ErrUnknownCategory = fmt.Errorf("%w: vendor category does not exist", httpx.ErrValidation)
	// ErrInvalidStatus indicates a vendor status change that is not allowed.
	ErrInvalidStatus = fmt.Errorf("%w: vendor status change not allowed", httpx.ErrConflict)
)

// Status is the lifecycle state of a vendor.
type Status string

const (
	StatusPendingCreation Status = "PENDING_CREATION"
	StatusUnderReview     Status = "UNDER_REVIEW"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusActive          Status = "ACTIVE"
	StatusInactive        Status = "INACTIVE"
	StatusSuspended       Status = "SUSPENDED"
	StatusTerminated      Status = "TERMINATED"
)

// Address is stored only when street, city and country are all present.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// NewAddress returns nil unless the mandatory parts are present.
func NewAddress(street, city, state, postal, country string) *Address {
	if strings.TrimSpace(street) == "" || strings.TrimSpace(city) == "" || strings.TrimSpace(country) == "" {
		return nil
	}
	return &Address{Street: street, City: city, State: state, PostalCode: postal, Country: country}
}

// Vendor is an approved supplier.
type Vendor struct {
	ID              int64     `json:"id"`
	VendorCode      string    `json:"vendorCode"`
	CompanyName     string    `json:"companyName"`
	LegalName       string    `json:"legalName,omitempty"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	TaxID           string    `json:"taxId,omitempty"`
	Website         string    `json:"website,omitempty"`
	Description     string    `json:"description,omitempty"`
	CategoryID      *int64    `json:"categoryId,omitempty"`
	Address         *Address  `json:"address,omitempty"`
	Status          Status    `json:"status"`
	SourceRequestID *int64    `json:"sourceRequestId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UpdateInput carries editable vendor attributes.
type UpdateInput struct {
	CompanyName string   `json:"companyName" validate:"required,max=255"`
	LegalName   string   `json:"legalName" validate:"max=255"`
	Email       string   `json:"email" validate:"omitempty,email,max=320"`
	Phone       string   `json:"phone" validate:"max=50"`
	TaxID       string   `json:"taxId" validate:"max=100"`
	Website     string   `json:"website" validate:"max=255"`
	Description string   `json:"description" validate:"max=4000"`
	CategoryID  *int64   `json:"categoryId" validate:"omitempty,gt=0"`
	Address     *Address `json:"address"`
}

// ListFilter narrows vendor listings.
type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}

// GenerateCode builds a vendor code from the first six alphanumerics of the
// company name, upper-cased and padded with V, followed by a UTC timestamp.
func GenerateCode(companyName string, now time.Time) string {
	var b strings.Builder
	for _, r := range companyName {
		if b.Len() == 6 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	base := b.String()
	if len(base) < 6 {
		base += strings.Repeat("V", 6-len(base))
	}
	return base + "-" + now.UTC().Format("060102150405")
}

// WithSuffix appends four random hex digits to code. It disambiguates codes
// generated for similar names within the same second.
func WithSuffix(code string) string {
	return code + "-" + strings.ToUpper(uuid.NewString()[:4])
}

// StatusAction names a lifecycle command on a vendor.
type StatusAction string

const (
	ActionActivate  StatusAction = "activate"
	ActionSuspend   StatusAction = "suspend"
	ActionTerminate StatusAction = "terminate"
)

// NextStatus applies action to current.
func NextStatus(current Status, action StatusAction) (Status, error) {
	switch action {
	case ActionActivate:
		switch current {
		case StatusPendingCreation, StatusApproved, StatusSuspended, StatusInactive:
			return StatusActive, nil
		}
	case ActionSuspend:
		if current == StatusActive {
			return StatusSuspended, nil
		}
	case ActionTerminate:
		if current != StatusTerminated {
			return StatusTerminated, nil
		}
	default:
		return current, fmt.Errorf("%w: unknown vendor action %q", httpx.ErrValidation, action)
	}
	return current, fmt.Errorf("%w: cannot %s a %s vendor", ErrInvalidStatus, action, current)
}
