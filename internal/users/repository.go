package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtvts/mtvts/internal/platform/db"
	"github.com/mtvts/mtvts/internal/shared"
)

// Repository is the persistence port for accounts.
type Repository interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, req ListRequest) ([]User, int, error)
	Create(ctx context.Context, u NewUser) (*User, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `u.id, u.full_name, u.username, u.email, u.enforcer_no, u.employee_id,
	u.role_id, r.slug, u.is_active, u.password_hash, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.Email, &u.EnforcerNo, &u.EmployeeID,
		&u.RoleID, &u.Role, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByLogin matches an email (case-insensitive) or a username.
func (r *PGRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users u JOIN roles r ON r.id = u.role_id
WHERE lower(u.email) = lower($1) OR u.username = $1
ORDER BY (lower(u.email) = lower($1)) DESC
LIMIT 1`, login)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	return u, err
}

// Get loads a user by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFoundf("user %d", id)
	}
	return u, err
}

// List filters by name/email substring and role slug, newest first.
func (r *PGRepository) List(ctx context.Context, req ListRequest) ([]User, int, error) {
	var (
		where []string
		args  []any
	)
	if req.Query != "" {
		args = append(args, "%"+req.Query+"%")
		where = append(where, fmt.Sprintf("(u.full_name ILIKE $%d OR u.email ILIKE $%d)", len(args), len(args)))
	}
	if req.Role != "" {
		args = append(args, req.Role)
		where = append(where, fmt.Sprintf("r.slug = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT `+userColumns+`
FROM users u JOIN roles r ON r.id = u.role_id%s
ORDER BY u.id DESC LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args)), args...)
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

// uniqueFields maps unique constraints to the request field they guard.
var uniqueFields = map[string]string{
	"users_email_key":       "email",
	"users_email_lower_idx": "email",
	"users_username_key":    "username",
	"users_enforcer_no_key": "enforcer_no",
	"users_employee_id_key": "employee_id",
}

// takenField turns a unique violation into a validation error on its field.
func takenField(err error) error {
	err = db.Classify(err)
	var conflict *db.ConflictError
	if errors.As(err, &conflict) {
		if field, ok := uniqueFields[conflict.Constraint]; ok {
			return shared.NewValidationError(field, "has already been taken")
		}
	}
	return err
}

func (r *PGRepository) roleID(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM roles WHERE slug = $1`, slug).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.NewValidationError("role", "is unknown")
	}
	return id, err
}

// Create inserts an account with its role resolved by slug.
func (r *PGRepository) Create(ctx context.Context, u NewUser) (*User, error) {
	roleID, err := r.roleID(ctx, u.Role)
	if err != nil {
		return nil, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO users (full_name, username, email, password_hash, role_id, enforcer_no, employee_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, u.FullName, u.Username, u.Email, u.PasswordHash, roleID, u.EnforcerNo, u.EmployeeID).Scan(&id)
	if err != nil {
		return nil, takenField(err)
	}
	return r.Get(ctx, id)
}

// Update applies the non-nil fields of req. An unknown role slug is a validation error.
func (r *PGRepository) Update(ctx context.Context, id int64, req UpdateRequest) (*User, error) {
	var (
		sets []string
		args []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if req.FullName != nil {
		add("full_name = $%d", *req.FullName)
	}
	if req.Email != nil {
		add("email = $%d", *req.Email)
	}
	if req.Role != nil {
		roleID, err := r.roleID(ctx, *req.Role)
		if err != nil {
			return nil, err
		}
		add("role_id = $%d", roleID)
	}
	if req.Active != nil {
		add("is_active = $%d", *req.Active)
	}
	if len(sets) > 0 {
		args = append(args, id)
		tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d`,
			strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return nil, takenField(err)
		}
		if tag.RowsAffected() == 0 {
			return nil, shared.NotFoundf("user %d", id)
		}
	}
	return r.Get(ctx, id)
}

// SetPassword stores a new bcrypt hash.
func (r *PGRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("user %d", id)
	}
	return nil
}
