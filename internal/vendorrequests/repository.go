package vendorrequests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/da-luiz/Clear-Chain/internal/platform/db"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/vendors"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

const txAttempts = 3

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool      *pgxpool.Pool
	approvals *shared.ApprovalRecorder
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, approvals *shared.ApprovalRecorder) *Repository {
	return &Repository{pool: pool, approvals: approvals}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. Serialization
// failures caused by a concurrent writer are retried so the callback sees
// the committed state and can reject stale actions itself.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
			return fn(ctx, &txRepo{tx: tx})
		})
		if !db.IsSerializationFailure(err) {
			return err
		}
	}
	return err
}

const requestColumns = `id, request_number, status, requesting_department_id, requested_by_user_id,
company_name, legal_name, business_justification, expected_contract_value::text,
primary_contact_name, primary_contact_title, primary_contact_email, primary_contact_phone,
business_registration_number, tax_identification_number, business_type, website,
address_street, address_city, address_state, address_postal_code, address_country, category_id,
bank_name, account_holder_name, account_number, swift_bic_code, currency, payment_terms, preferred_payment_method,
supporting_documents, reviewed_by, reviewed_at, rejection_reason, additional_info_required, vendor_id,
created_at, updated_at`

// Get returns a request by id.
func (r *Repository) Get(ctx context.Context, id int64) (VendorRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM vendor_requests WHERE id = $1`, id))
}

// List returns requests matching filter, newest first for the full list and
// oldest first when restricted to statuses.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]VendorRequest, int, error) {
	var statuses []string
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}
	var requestedBy *int64
	if filter.RequestedBy > 0 {
		requestedBy = &filter.RequestedBy
	}
	var search *string
	if s := strings.TrimSpace(filter.Search); s != "" {
		v := "%" + strings.ToLower(s) + "%"
		search = &v
	}
	where := ` WHERE (cardinality($1::text[]) = 0 OR status = ANY($1))
AND ($2::bigint IS NULL OR requested_by_user_id = $2)
AND ($3::text IS NULL OR lower(company_name) LIKE $3 OR lower(request_number) LIKE $3)`
	if statuses == nil {
		statuses = []string{}
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendor_requests`+where, statuses, requestedBy, search).Scan(&total); err != nil {
		return nil, 0, err
	}
	order := ` ORDER BY created_at DESC, id DESC`
	if len(filter.Statuses) > 0 {
		order = ` ORDER BY created_at ASC, id ASC`
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM vendor_requests`+where+order+` LIMIT $4 OFFSET $5`,
		statuses, requestedBy, search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []VendorRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

// Approvals returns the approval history of request id.
func (r *Repository) Approvals(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	return r.approvals.List(ctx, ApprovalModule, shared.ApprovalRefID(ApprovalModule, id))
}

func (t *txRepo) Create(ctx context.Context, req VendorRequest) (VendorRequest, error) {
	docs, err := json.Marshal(req.SupportingDocuments)
	if err != nil {
		return VendorRequest{}, err
	}
	row := t.tx.QueryRow(ctx, `INSERT INTO vendor_requests (request_number, status, requesting_department_id, requested_by_user_id,
company_name, legal_name, business_justification, expected_contract_value,
primary_contact_name, primary_contact_title, primary_contact_email, primary_contact_phone,
business_registration_number, tax_identification_number, business_type, website,
address_street, address_city, address_state, address_postal_code, address_country, category_id,
currency, supporting_documents, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, NOW(), NOW())
RETURNING `+requestColumns,
		req.RequestNumber, string(req.Status), req.RequestingDepartmentID, req.RequestedByUserID,
		req.CompanyName, req.LegalName, req.BusinessJustification, decimalParam(req.ExpectedContractValue),
		req.PrimaryContactName, req.PrimaryContactTitle, req.PrimaryContactEmail, req.PrimaryContactPhone,
		req.BusinessRegistrationNumber, req.TaxIdentificationNumber, req.BusinessType, req.Website,
		req.AddressStreet, req.AddressCity, req.AddressState, req.AddressPostalCode, req.AddressCountry, req.CategoryID,
		req.Currency, string(docs))
	created, err := scanRequest(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return VendorRequest{}, ErrDuplicateNumber
		}
		return VendorRequest{}, err
	}
	return created, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (VendorRequest, error) {
	return scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM vendor_requests WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) UpdateDraft(ctx context.Context, id int64, in DraftInput) error {
	docs, err := json.Marshal(in.SupportingDocuments)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE vendor_requests SET requesting_department_id = $2,
company_name = $3, legal_name = $4, business_justification = $5, expected_contract_value = $6::numeric,
primary_contact_name = $7, primary_contact_title = $8, primary_contact_email = $9, primary_contact_phone = $10,
business_registration_number = $11, tax_identification_number = $12, business_type = $13, website = $14,
address_street = $15, address_city = $16, address_state = $17, address_postal_code = $18, address_country = $19,
category_id = $20, currency = $21, supporting_documents = $22, updated_at = NOW()
WHERE id = $1`,
		id, in.RequestingDepartmentID,
		in.CompanyName, in.LegalName, in.BusinessJustification, decimalParam(in.ExpectedContractValue),
		in.PrimaryContactName, in.PrimaryContactTitle, in.PrimaryContactEmail, in.PrimaryContactPhone,
		in.BusinessRegistrationNumber, in.TaxIdentificationNumber, in.BusinessType, in.Website,
		in.AddressStreet, in.AddressCity, in.AddressState, in.AddressPostalCode, in.AddressCountry,
		in.CategoryID, in.Currency, string(docs))
	return affected(tag.RowsAffected(), err)
}

func (t *txRepo) UpdateBanking(ctx context.Context, id int64, d workflow.BankingDetails) error {
	tag, err := t.tx.Exec(ctx, `UPDATE vendor_requests SET bank_name = $2, account_holder_name = $3, account_number = $4,
swift_bic_code = $5, currency = $6, payment_terms = $7, preferred_payment_method = $8, updated_at = NOW()
WHERE id = $1`, id, d.BankName, d.AccountHolderName, d.AccountNumber, d.SwiftBicCode, d.Currency, d.PaymentTerms, d.PreferredPaymentMethod)
	return affected(tag.RowsAffected(), err)
}

// ApplyTransition writes the new status guarded by the expected source
// status; nil pointer fields are left unchanged.
func (t *txRepo) ApplyTransition(ctx context.Context, id int64, tr Transition) error {
	tag, err := t.tx.Exec(ctx, `UPDATE vendor_requests SET status = $3,
reviewed_by = COALESCE($4, reviewed_by), reviewed_at = COALESCE($5, reviewed_at),
rejection_reason = COALESCE($6, rejection_reason), additional_info_required = COALESCE($7, additional_info_required),
updated_at = NOW()
WHERE id = $1 AND status = $2`, id, string(tr.From), string(tr.To), tr.ReviewedBy, tr.ReviewedAt, tr.RejectionReason, tr.AdditionalInfoRequired)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: request %d is no longer %s", workflow.ErrInvalidTransition, id, tr.From)
	}
	return nil
}

// CreateVendor inserts inside a savepoint so a vendor code collision leaves
// the surrounding transaction usable for another attempt.
func (t *txRepo) CreateVendor(ctx context.Context, v vendors.Vendor) (vendors.Vendor, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return vendors.Vendor{}, err
	}
	created, err := vendors.NewRepository(sp).Create(ctx, v)
	if err != nil {
		_ = sp.Rollback(ctx)
		return vendors.Vendor{}, err
	}
	return created, sp.Commit(ctx)
}

func (t *txRepo) LinkVendor(ctx context.Context, id, vendorID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE vendor_requests SET vendor_id = $2, updated_at = NOW() WHERE id = $1`, id, vendorID)
	return affected(tag.RowsAffected(), err)
}

func (t *txRepo) InsertApproval(ctx context.Context, log shared.ApprovalLog) error {
	return shared.InsertApproval(ctx, t.tx, log)
}

func affected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decimalParam(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func scanRequest(row pgx.Row) (VendorRequest, error) {
	var (
		req    VendorRequest
		status string
		value  *string
		docs   []byte
	)
	err := row.Scan(&req.ID, &req.RequestNumber, &status, &req.RequestingDepartmentID, &req.RequestedByUserID,
		&req.CompanyName, &req.LegalName, &req.BusinessJustification, &value,
		&req.PrimaryContactName, &req.PrimaryContactTitle, &req.PrimaryContactEmail, &req.PrimaryContactPhone,
		&req.BusinessRegistrationNumber, &req.TaxIdentificationNumber, &req.BusinessType, &req.Website,
		&req.AddressStreet, &req.AddressCity, &req.AddressState, &req.AddressPostalCode, &req.AddressCountry, &req.CategoryID,
		&req.BankName, &req.AccountHolderName, &req.AccountNumber, &req.SwiftBicCode, &req.Currency, &req.PaymentTerms, &req.PreferredPaymentMethod,
		&docs, &req.ReviewedBy, &req.ReviewedAt, &req.RejectionReason, &req.AdditionalInfoRequired, &req.VendorID,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VendorRequest{}, ErrNotFound
		}
		return VendorRequest{}, err
	}
	parsed, err := workflow.ParseStatus(status)
	if err != nil {
		return VendorRequest{}, fmt.Errorf("vendor request %d: %w", req.ID, err)
	}
	req.Status = parsed
	if value != nil {
		d, err := decimal.NewFromString(*value)
		if err != nil {
			return VendorRequest{}, fmt.Errorf("vendor request %d: expected contract value: %w", req.ID, err)
		}
		req.ExpectedContractValue = &d
	}
	req.SupportingDocuments = []SupportingDocument{}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &req.SupportingDocuments); err != nil {
			return VendorRequest{}, fmt.Errorf("vendor request %d: supporting documents: %w", req.ID, err)
		}
	}
	return req, nil
}
