package workflow

import "strings"

// BankingDetails are the payment instruments attached during finance review.
type BankingDetails struct {
	BankName               string `json:"bankName"`
	AccountHolderName      string `json:"accountHolderName"`
	AccountNumber          string `json:"accountNumber"`
	SwiftBicCode           string `json:"swiftBicCode,omitempty"`
	Currency               string `json:"currency,omitempty"`
	PaymentTerms           string `json:"paymentTerms,omitempty"`
	PreferredPaymentMethod string `json:"preferredPaymentMethod,omitempty"`
}

// Complete reports whether the fields required for finance approval are set.
// Optional fields are ignored.
func (b BankingDetails) Complete() bool {
	return strings.TrimSpace(b.BankName) != "" &&
		strings.TrimSpace(b.AccountHolderName) != "" &&
		strings.TrimSpace(b.AccountNumber) != ""
}

// Missing names the required fields that are still empty.
func (b BankingDetails) Missing() []string {
	var out []string
	if strings.TrimSpace(b.BankName) == "" {
		out = append(out, "bankName")
	}
	if strings.TrimSpace(b.AccountHolderName) == "" {
		out = append(out, "accountHolderName")
	}
	if strings.TrimSpace(b.AccountNumber) == "" {
		out = append(out, "accountNumber")
	}
	return out
}
