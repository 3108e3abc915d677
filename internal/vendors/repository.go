package vendors

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/da-luiz/Clear-Chain/internal/platform/db"
)

// Repository persists vendors. It runs against a pool or an open transaction
// so vendor creation can join the approval transaction.
type Repository struct {
	q db.DBTX
}

// NewRepository constructs a Repository over q.
func NewRepository(q db.DBTX) *Repository {
	return &Repository{q: q}
}

const vendorColumns = `id, vendor_code, company_name, legal_name, email, phone, tax_id, website, description, category_id,
address_street, address_city, address_state, address_postal_code, address_country, status, source_request_id, created_at, updated_at`

// Create inserts v and returns the stored vendor.
func (r *Repository) Create(ctx context.Context, v Vendor) (Vendor, error) {
	addr := v.Address
	if addr == nil {
		addr = &Address{}
	}
	row := r.q.QueryRow(ctx, `INSERT INTO vendors (vendor_code, company_name, legal_name, email, phone, tax_id, website, description, category_id,
address_street, address_city, address_state, address_postal_code, address_country, status, source_request_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
RETURNING `+vendorColumns,
		v.VendorCode, v.CompanyName, v.LegalName, v.Email, v.Phone, v.TaxID, v.Website, v.Description, v.CategoryID,
		addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country, string(v.Status), v.SourceRequestID)
	created, err := scanVendor(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Vendor{}, ErrDuplicateCode
		}
		return Vendor{}, err
	}
	return created, nil
}

// Get returns a vendor by id.
func (r *Repository) Get(ctx context.Context, id int64) (Vendor, error) {
	return scanVendor(r.q.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
}

// List returns vendors matching filter ordered by company name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Vendor, int, error) {
	var status, search *string
	if filter.Status != "" {
		v := string(filter.Status)
		status = &v
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		v := "%" + strings.ToLower(s) + "%"
		search = &v
	}
	where := ` WHERE ($1::text IS NULL OR status = $1)
AND ($2::text IS NULL OR lower(company_name) LIKE $2 OR lower(vendor_code) LIKE $2)`
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`+where, status, search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `SELECT `+vendorColumns+` FROM vendors`+where+`
ORDER BY company_name ASC, id ASC LIMIT $3 OFFSET $4`, status, search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// Update writes editable attributes.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (Vendor, error) {
	addr := in.Address
	if addr == nil {
		addr = &Address{}
	}
	v, err := scanVendor(r.q.QueryRow(ctx, `UPDATE vendors SET company_name = $2, legal_name = $3, email = $4, phone = $5, tax_id = $6,
website = $7, description = $8, category_id = $9, address_street = $10, address_city = $11, address_state = $12,
address_postal_code = $13, address_country = $14, updated_at = NOW()
WHERE id = $1 RETURNING `+vendorColumns,
		id, in.CompanyName, in.LegalName, in.Email, in.Phone, in.TaxID, in.Website, in.Description, in.CategoryID,
		addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country))
	if db.IsForeignKeyViolation(err) {
		return Vendor{}, ErrUnknownCategory
	}
	return v, err
}

// SetStatus changes the lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) (Vendor, error) {
	return scanVendor(r.q.QueryRow(ctx, `UPDATE vendors SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+vendorColumns, id, string(status)))
}

func scanVendor(row pgx.Row) (Vendor, error) {
	var (
		v                                  Vendor
		status                             string
		street, city, state, postal, cntry string
	)
	err := row.Scan(&v.ID, &v.VendorCode, &v.CompanyName, &v.LegalName, &v.Email, &v.Phone, &v.TaxID, &v.Website, &v.Description, &v.CategoryID,
		&street, &city, &state, &postal, &cntry, &status, &v.SourceRequestID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrNotFound
		}
		return Vendor{}, err
	}
	v.Status = Status(status)
	v.Address = NewAddress(street, city, state, postal, cntry)
	return v, nil
}
