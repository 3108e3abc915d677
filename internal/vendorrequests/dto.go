package vendorrequests

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// DraftInput carries the requester-editable fields of a request, used for
// both creation and draft updates.
type DraftInput struct {
	CompanyName           string           `json:"companyName" validate:"required,max=255"`
	LegalName             string           `json:"legalName" validate:"max=255"`
	BusinessJustification string           `json:"businessJustification" validate:"max=4000"`
	ExpectedContractValue *decimal.Decimal `json:"expectedContractValue"`

	RequestingDepartmentID int64 `json:"requestingDepartmentId" validate:"required,gt=0"`
	RequestedByUserID      int64 `json:"requestedByUserId" validate:"omitempty,gt=0"`

	PrimaryContactName  string `json:"primaryContactName" validate:"max=255"`
	PrimaryContactTitle string `json:"primaryContactTitle" validate:"max=255"`
	PrimaryContactEmail string `json:"primaryContactEmail" validate:"omitempty,email,max=320"`
	PrimaryContactPhone string `json:"primaryContactPhone" validate:"max=50"`

	BusinessRegistrationNumber string `json:"businessRegistrationNumber" validate:"max=100"`
	TaxIdentificationNumber    string `json:"taxIdentificationNumber" validate:"max=100"`
	BusinessType               string `json:"businessType" validate:"max=100"`
	Website                    string `json:"website" validate:"max=255"`

	AddressStreet     string `json:"addressStreet" validate:"max=255"`
	AddressCity       string `json:"addressCity" validate:"max=255"`
	AddressState      string `json:"addressState" validate:"max=255"`
	AddressPostalCode string `json:"addressPostalCode" validate:"max=50"`
	AddressCountry    string `json:"addressCountry" validate:"max=255"`

	CategoryID *int64 `json:"categoryId" validate:"omitempty,gt=0"`
	Currency   string `json:"currency" validate:"omitempty,currency"`

	SupportingDocuments []SupportingDocument `json:"supportingDocuments" validate:"max=50,dive"`
}

// BankingInput is the finance stage's banking payload.
type BankingInput struct {
	BankName               string `json:"bankName" validate:"required,max=255"`
	AccountHolderName      string `json:"accountHolderName" validate:"required,max=255"`
	AccountNumber          string `json:"accountNumber" validate:"required,max=64"`
	SwiftBicCode           string `json:"swiftBicCode" validate:"omitempty,bic"`
	Currency               string `json:"currency" validate:"omitempty,currency"`
	PaymentTerms           string `json:"paymentTerms" validate:"max=100"`
	PreferredPaymentMethod string `json:"preferredPaymentMethod" validate:"max=100"`
}

// Details converts the payload into the machine's banking record.
func (in BankingInput) Details() workflow.BankingDetails {
	return workflow.BankingDetails{
		BankName:               strings.TrimSpace(in.BankName),
		AccountHolderName:      strings.TrimSpace(in.AccountHolderName),
		AccountNumber:          strings.TrimSpace(in.AccountNumber),
		SwiftBicCode:           strings.ToUpper(strings.TrimSpace(in.SwiftBicCode)),
		Currency:               normaliseCurrency(in.Currency),
		PaymentTerms:           strings.TrimSpace(in.PaymentTerms),
		PreferredPaymentMethod: strings.TrimSpace(in.PreferredPaymentMethod),
	}
}

// ActionInput is the reviewer payload for approve, reject and request-info.
// ReviewerID is optional and, when present, must name the caller.
type ActionInput struct {
	ReviewerID *int64 `json:"reviewerId"`
	Comment    string `json:"comment" validate:"max=4000"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		_, err := currency.ParseISO(strings.TrimSpace(fl.Field().String()))
		return err == nil
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func validationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		fields := make([]string, 0, len(errs))
		for _, fe := range errs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: invalid %s", httpx.ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
}

func normaliseCurrency(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	unit, err := currency.ParseISO(raw)
	if err != nil {
		return strings.ToUpper(raw)
	}
	return unit.String()
}

func validateContractValue(v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return fmt.Errorf("%w: expectedContractValue must not be negative", httpx.ErrValidation)
	}
	return nil
}
