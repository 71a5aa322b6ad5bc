package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TopViolations caps the by-violation breakdown.
const TopViolations = 20

// Repository runs the reporting aggregates.
type Repository interface {
	TicketCounts(ctx context.Context, r Range) (Summary, error)
	Collections(ctx context.Context, from, to *time.Time) (decimal.Decimal, error)
	ByViolation(ctx context.Context, r Range, limit int) ([]ViolationCollections, error)
	Daily(ctx context.Context, r Range, loc *time.Location) ([]DailyCollections, error)
	CitationsBetween(ctx context.Context, from, to time.Time) (int, error)
	CountEnforcers(ctx context.Context) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*repository)(nil)

// NewRepository creates a pgx-backed report repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func bounds(r Range) (any, any) {
	if !r.Bounded() {
		return nil, nil
	}
	return *r.From, *r.To
}

func (p *repository) TicketCounts(ctx context.Context, r Range) (Summary, error) {
	from, to := bounds(r)
	var s Summary
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'unpaid'),
       COUNT(*) FILTER (WHERE status = 'paid')
FROM tickets
WHERE ($1::timestamptz IS NULL OR apprehended_at >= $1)
  AND ($2::timestamptz IS NULL OR apprehended_at < $2)`, from, to).Scan(&s.TotalTickets, &s.OpenTickets, &s.PaidTickets)
	if err != nil {
		return Summary{}, fmt.Errorf("ticket counts: %w", err)
	}
	return s, nil
}

func (p *repository) Collections(ctx context.Context, from, to *time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments
WHERE status = 'recorded'
  AND ($1::timestamptz IS NULL OR paid_at >= $1)
  AND ($2::timestamptz IS NULL OR paid_at < $2)`, from, to).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("collections: %w", err)
	}
	return sum, nil
}

func (p *repository) ByViolation(ctx context.Context, r Range, limit int) ([]ViolationCollections, error) {
	from, to := bounds(r)
	rows, err := p.pool.Query(ctx, `SELECT v.name, COUNT(DISTINCT t.id), SUM(p.amount)
FROM payments p
JOIN tickets t ON t.id = p.ticket_id
JOIN violations v ON v.id = t.violation_id
WHERE p.status = 'recorded'
  AND ($1::timestamptz IS NULL OR p.paid_at >= $1)
  AND ($2::timestamptz IS NULL OR p.paid_at < $2)
GROUP BY v.id, v.name
ORDER BY COUNT(DISTINCT t.id) DESC, v.name
LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("collections by violation: %w", err)
	}
	defer rows.Close()
	out := []ViolationCollections{}
	for rows.Next() {
		var row ViolationCollections
		if err := rows.Scan(&row.ViolationName, &row.Count, &row.Amount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *repository) Daily(ctx context.Context, r Range, loc *time.Location) ([]DailyCollections, error) {
	from, to := bounds(r)
	rows, err := p.pool.Query(ctx, `SELECT to_char((paid_at AT TIME ZONE $3)::date, 'YYYY-MM-DD') AS day,
       COUNT(DISTINCT ticket_id), SUM(amount)
FROM payments
WHERE status = 'recorded'
  AND ($1::timestamptz IS NULL OR paid_at >= $1)
  AND ($2::timestamptz IS NULL OR paid_at < $2)
GROUP BY day
ORDER BY day`, from, to, loc.String())
	if err != nil {
		return nil, fmt.Errorf("daily collections: %w", err)
	}
	defer rows.Close()
	out := []DailyCollections{}
	for rows.Next() {
		var row DailyCollections
		if err := rows.Scan(&row.Date, &row.Tickets, &row.Amount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *repository) CitationsBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("citations today: %w", err)
	}
	return n, nil
}

func (p *repository) CountEnforcers(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE r.slug = 'enforcer'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count enforcers: %w", err)
	}
	return n, nil
}
