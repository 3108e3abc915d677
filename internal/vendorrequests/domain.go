package vendorrequests

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// ApprovalModule tags vendor request entries in the approval history.
const ApprovalModule = "VENDOR_REQUEST"

var (
	// ErrNotFound indicates the vendor request does not exist.
	ErrNotFound = fmt.Errorf("vendor request %w", httpx.ErrNotFound)
	// ErrReviewerMismatch is returned when a payload names a reviewer other
	// than the authenticated caller.
	ErrReviewerMismatch = fmt.Errorf("%w: reviewerId does not match the authenticated user", httpx.ErrForbidden)
	// ErrCurrencyLocked is returned when finance names a currency other than
	// the one the requester chose.
	ErrCurrencyLocked = fmt.Errorf("%w: currency is set by the requester", httpx.ErrValidation)
)

// DocumentType classifies a supporting document.
type DocumentType string

const (
	DocumentFile     DocumentType = "file"
	DocumentLink     DocumentType = "link"
	DocumentGithub   DocumentType = "github"
	DocumentLinkedIn DocumentType = "linkedin"
)

// SupportingDocument references evidence attached to a request.
type SupportingDocument struct {
	Type     DocumentType `json:"type" validate:"required,oneof=file link github linkedin"`
	Value    string       `json:"value" validate:"required,max=2048"`
	Name     string       `json:"name" validate:"max=255"`
	FileName string       `json:"fileName,omitempty" validate:"max=255"`
}

// VendorRequest is a request to onboard a new vendor.
type VendorRequest struct {
	ID                     int64           `json:"id"`
	RequestNumber          string          `json:"requestNumber"`
	Status                 workflow.Status `json:"status"`
	RequestingDepartmentID int64           `json:"requestingDepartmentId"`
	RequestedByUserID      int64           `json:"requestedByUserId"`

	CompanyName           string           `json:"companyName"`
	LegalName             string           `json:"legalName,omitempty"`
	BusinessJustification string           `json:"businessJustification,omitempty"`
	ExpectedContractValue *decimal.Decimal `json:"expectedContractValue,omitempty"`

	PrimaryContactName  string `json:"primaryContactName,omitempty"`
	PrimaryContactTitle string `json:"primaryContactTitle,omitempty"`
	PrimaryContactEmail string `json:"primaryContactEmail,omitempty"`
	PrimaryContactPhone string `json:"primaryContactPhone,omitempty"`

	BusinessRegistrationNumber string `json:"businessRegistrationNumber,omitempty"`
	TaxIdentificationNumber    string `json:"taxIdentificationNumber,omitempty"`
	BusinessType               string `json:"businessType,omitempty"`
	Website                    string `json:"website,omitempty"`

	AddressStreet     string `json:"addressStreet,omitempty"`
	AddressCity       string `json:"addressCity,omitempty"`
	AddressState      string `json:"addressState,omitempty"`
	AddressPostalCode string `json:"addressPostalCode,omitempty"`
	AddressCountry    string `json:"addressCountry,omitempty"`

	CategoryID *int64 `json:"categoryId,omitempty"`

	workflow.BankingDetails

	SupportingDocuments []SupportingDocument `json:"supportingDocuments"`

	ReviewedBy             *int64     `json:"reviewedBy,omitempty"`
	ReviewedAt             *time.Time `json:"reviewedAt,omitempty"`
	RejectionReason        string     `json:"rejectionReason,omitempty"`
	AdditionalInfoRequired string     `json:"additionalInfoRequired,omitempty"`
	VendorID               *int64     `json:"vendorId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subject projects the request onto the state machine's view.
func (r VendorRequest) Subject() workflow.Subject {
	return workflow.Subject{Status: r.Status, Banking: r.BankingDetails}
}

// ApprovalRef is the request's key in the approval history.
func (r VendorRequest) ApprovalRef() uuid.UUID {
	return shared.ApprovalRefID(ApprovalModule, r.ID)
}

// NewRequestNumber returns "VCR-" and the first eight characters of a random
// UUID, upper-cased.
func NewRequestNumber() string {
	return "VCR-" + strings.ToUpper(uuid.NewString()[:8])
}

// ListFilter narrows request listings.
type ListFilter struct {
	Statuses    []workflow.Status
	RequestedBy int64
	Search      string
	Limit       int
	Offset      int
}

// Transition is the state written by a workflow action.
type Transition struct {
	From                   workflow.Status
	To                     workflow.Status
	ReviewedBy             *int64
	ReviewedAt             *time.Time
	RejectionReason        *string
	AdditionalInfoRequired *string
}
