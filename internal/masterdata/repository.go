package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/da-luiz/Clear-Chain/internal/platform/db"
)

// Repository reads reference data. Rows are maintained by migrations.
type Repository struct {
	q db.DBTX
}

// NewRepository constructs a Repository over q.
func NewRepository(q db.DBTX) *Repository {
	return &Repository{q: q}
}

const referenceColumns = `id, code, name, description, is_active, created_at, updated_at`

// ListDepartments returns departments ordered by name.
func (r *Repository) ListDepartments(ctx context.Context, activeOnly bool) ([]Department, error) {
	rows, err := r.q.Query(ctx, `SELECT `+referenceColumns+` FROM departments WHERE (NOT $1 OR is_active) ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanDepartment)
}

// GetDepartment returns a department by id.
func (r *Repository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	rows, err := r.q.Query(ctx, `SELECT `+referenceColumns+` FROM departments WHERE id = $1`, id)
	if err != nil {
		return Department{}, err
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDepartment)
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrDepartmentNotFound
	}
	return d, err
}

// ListCategories returns vendor categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	rows, err := r.q.Query(ctx, `SELECT `+referenceColumns+` FROM vendor_categories WHERE (NOT $1 OR is_active) ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCategory)
}

// GetCategory returns a vendor category by id.
func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	rows, err := r.q.Query(ctx, `SELECT `+referenceColumns+` FROM vendor_categories WHERE id = $1`, id)
	if err != nil {
		return Category{}, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return c, err
}

func scanDepartment(row pgx.CollectableRow) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Description, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func scanCategory(row pgx.CollectableRow) (Category, error) {
	d, err := scanDepartment(row)
	return Category(d), err
}
