package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/da-luiz/Clear-Chain/internal/platform/db"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Repository persists users.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Create(ctx context.Context, u User) (*User, error)
	UpdateRole(ctx context.Context, id int64, role workflow.Role) (*User, error)
	SetActive(ctx context.Context, id int64, active bool) (*User, error)
	Count(ctx context.Context) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, email, first_name, last_name, role, department_id, is_active, password_hash, created_at, updated_at`

// FindByUsername fetches a user by case-insensitive username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
	return scanUser(row)
}

// Get fetches a user by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// List returns users ordered by username along with the total count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var role *string
	if filter.Role != "" {
		v := string(filter.Role)
		role = &v
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE ($1::text IS NULL OR role = $1)`, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
WHERE ($1::text IS NULL OR role = $1)
ORDER BY username ASC LIMIT $2 OFFSET $3`, role, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// Create inserts a user.
func (r *PGRepository) Create(ctx context.Context, u User) (*User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (username, email, first_name, last_name, role, department_id, is_active, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+userColumns, u.Username, u.Email, u.FirstName, u.LastName, string(u.Role), u.DepartmentID, u.IsActive, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		if db.IsForeignKeyViolation(err) {
			return nil, ErrUnknownDepartment
		}
		return nil, err
	}
	return created, nil
}

// UpdateRole changes the role of a user.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, role workflow.Role) (*User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, string(role))
	return scanUser(row)
}

// SetActive toggles the active flag.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) (*User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, active)
	return scanUser(row)
}

// Count returns the number of users.
func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &role, &u.DepartmentID, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	parsed, err := workflow.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("users: stored role for %d: %w", u.ID, err)
	}
	u.Role = parsed
	return &u, nil
}
