package violations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtvts/mtvts/internal/shared"
)

// Repository defines persistence for the violation catalog.
type Repository interface {
	ListTypes(ctx context.Context) ([]string, error)
	List(ctx context.Context, req ListRequest) ([]Violation, error)
	Get(ctx context.Context, id int64) (*Violation, error)
	GetMany(ctx context.Context, ids []int64) ([]Violation, error)
	Create(ctx context.Context, req UpsertRequest) (*Violation, error)
	Update(ctx context.Context, id int64, req UpsertRequest) (*Violation, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed catalog repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const violationColumns = `id, type, name, fine, ordinance_no, created_at, updated_at`

func scanViolation(row pgx.Row) (Violation, error) {
	var v Violation
	err := row.Scan(&v.ID, &v.Type, &v.Name, &v.Fine, &v.OrdinanceNo, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func collect(rows pgx.Rows) ([]Violation, error) {
	defer rows.Close()
	var out []Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) ListTypes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT type FROM violations ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("list violation types: %w", err)
	}
	defer rows.Close()
	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Violation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+violationColumns+` FROM violations
WHERE ($1 = '' OR type = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR ordinance_no ILIKE '%' || $2 || '%')
ORDER BY type, name`, req.Type, req.Query)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return collect(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (*Violation, error) {
	v, err := scanViolation(r.pool.QueryRow(ctx, `SELECT `+violationColumns+` FROM violations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("violation %d", id)
		}
		return nil, fmt.Errorf("get violation: %w", err)
	}
	return &v, nil
}

func (r *repository) GetMany(ctx context.Context, ids []int64) ([]Violation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+violationColumns+` FROM violations WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get violations: %w", err)
	}
	return collect(rows)
}

func (r *repository) Create(ctx context.Context, req UpsertRequest) (*Violation, error) {
	v, err := scanViolation(r.pool.QueryRow(ctx, `INSERT INTO violations (type, name, fine, ordinance_no, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING `+violationColumns, req.Type, req.Name, req.Fine, req.OrdinanceNo))
	if err != nil {
		return nil, fmt.Errorf("create violation: %w", err)
	}
	return &v, nil
}

func (r *repository) Update(ctx context.Context, id int64, req UpsertRequest) (*Violation, error) {
	v, err := scanViolation(r.pool.QueryRow(ctx, `UPDATE violations SET type = $2, name = $3, fine = $4, ordinance_no = $5, updated_at = NOW()
WHERE id = $1 RETURNING `+violationColumns, id, req.Type, req.Name, req.Fine, req.OrdinanceNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("violation %d", id)
		}
		return nil, fmt.Errorf("update violation: %w", err)
	}
	return &v, nil
}
