package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/platform/db"
	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/violations"
)

// Repository defines ticket persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Ticket, error)
	GetByControlNo(ctx context.Context, controlNo string) (*Ticket, error)
	LatestPayment(ctx context.Context, ticketID int64) (*PaymentSummary, error)
	EnforcerDay(ctx context.Context, enforcerID int64, from, to time.Time) (EnforcerStats, error)
	CountOverdue(ctx context.Context, asOf time.Time) (int, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes of one issuance transaction.
type TxRepository interface {
	LoadViolations(ctx context.Context, ids []int64) ([]violations.Violation, error)
	UpsertViolator(ctx context.Context, v Violator) (int64, error)
	NextControlSeq(ctx context.Context, prefix string) (int, error)
	InsertTicket(ctx context.Context, t *Ticket) error
	InsertTicketViolation(ctx context.Context, tv TicketViolation) error
}

type repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository creates a pgx-backed ticket repository.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) Repository {
	return &repository{pool: pool, lockTimeout: lockTimeout}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction; row locks and ON CONFLICT
// serialize concurrent issuers.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.TxOptions{IsoLevel: pgx.ReadCommitted, LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const ticketSelect = `SELECT t.id, t.control_no, t.violator_id, t.enforcer_id, t.violation_id, t.fine_amount,
       t.additional_fees, t.total_amount, t.place_of_apprehension, t.apprehended_at, t.compliance_date,
       t.status, t.created_at, t.updated_at,
       v.id, v.name, v.address, v.drivers_license, v.plate_no, v.age, v.sex, v.kd_no,
       u.id, COALESCE(u.full_name, ''), u.enforcer_no
FROM tickets t
JOIN violators v ON v.id = t.violator_id
LEFT JOIN users u ON u.id = t.enforcer_id`

func (r *repository) scanTicket(ctx context.Context, query string, arg any) (*Ticket, error) {
	var (
		t          Ticket
		vio        Violator
		enforcerID *int64
		enforcer   Enforcer
		status     string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&t.ID, &t.ControlNo, &t.ViolatorID, &t.EnforcerID, &t.ViolationID, &t.FineAmount,
		&t.AdditionalFees, &t.TotalAmount, &t.PlaceOfApprehension, &t.ApprehendedAt, &t.ComplianceDate,
		&status, &t.CreatedAt, &t.UpdatedAt,
		&vio.ID, &vio.Name, &vio.Address, &vio.DriversLicense, &vio.PlateNo, &vio.Age, &vio.Sex, &vio.KDNo,
		&enforcerID, &enforcer.FullName, &enforcer.EnforcerNo,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.Violator = &vio
	if enforcerID != nil {
		enforcer.ID = *enforcerID
		t.Enforcer = &enforcer
	}
	lines, err := r.lines(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Violations = lines
	return &t, nil
}

func (r *repository) lines(ctx context.Context, ticketID int64) ([]TicketViolation, error) {
	rows, err := r.pool.Query(ctx, `SELECT tv.ticket_id, tv.violation_id, tv.fine_amount, tv.remarks, v.name, v.type, v.ordinance_no
FROM ticket_violations tv
JOIN violations v ON v.id = tv.violation_id
WHERE tv.ticket_id = $1
ORDER BY tv.id`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket violations: %w", err)
	}
	defer rows.Close()
	lines := []TicketViolation{}
	for rows.Next() {
		var tv TicketViolation
		if err := rows.Scan(&tv.TicketID, &tv.ViolationID, &tv.FineAmount, &tv.Remarks, &tv.Name, &tv.Type, &tv.OrdinanceNo); err != nil {
			return nil, err
		}
		lines = append(lines, tv)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Ticket, error) {
	t, err := r.scanTicket(ctx, ticketSelect+` WHERE t.id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("ticket %d", id)
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (r *repository) GetByControlNo(ctx context.Context, controlNo string) (*Ticket, error) {
	t, err := r.scanTicket(ctx, ticketSelect+` WHERE t.control_no = $1`, controlNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("ticket %s", controlNo)
		}
		return nil, fmt.Errorf("get ticket by control no: %w", err)
	}
	return t, nil
}

func (r *repository) LatestPayment(ctx context.Context, ticketID int64) (*PaymentSummary, error) {
	var p PaymentSummary
	err := r.pool.QueryRow(ctx, `SELECT receipt_no, amount, paid_at FROM payments
WHERE ticket_id = $1 AND status = 'recorded'
ORDER BY paid_at DESC, id DESC LIMIT 1`, ticketID).Scan(&p.ReceiptNo, &p.Amount, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest payment: %w", err)
	}
	return &p, nil
}

func (r *repository) EnforcerDay(ctx context.Context, enforcerID int64, from, to time.Time) (EnforcerStats, error) {
	var stats EnforcerStats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total_amount), 0), MAX(apprehended_at)
FROM tickets
WHERE enforcer_id = $1 AND apprehended_at >= $2 AND apprehended_at < $3`, enforcerID, from, to).
		Scan(&stats.TicketsToday, &stats.TotalFines, &stats.LastCitationAt)
	if err != nil {
		return EnforcerStats{}, fmt.Errorf("enforcer stats: %w", err)
	}
	return stats, nil
}

func (r *repository) CountOverdue(ctx context.Context, asOf time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets
WHERE status = 'unpaid' AND compliance_date IS NOT NULL AND compliance_date < $1`, asOf).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count overdue tickets: %w", err)
	}
	return n, nil
}

func (t *txRepository) LoadViolations(ctx context.Context, ids []int64) ([]violations.Violation, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, type, name, fine, ordinance_no, created_at, updated_at
FROM violations WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load violations: %w", err)
	}
	defer rows.Close()
	var out []violations.Violation
	for rows.Next() {
		var v violations.Violation
		if err := rows.Scan(&v.ID, &v.Type, &v.Name, &v.Fine, &v.OrdinanceNo, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *txRepository) UpsertViolator(ctx context.Context, v Violator) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO violators (name, address, drivers_license, plate_no, age, sex, kd_no, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
ON CONFLICT (drivers_license) DO UPDATE SET
    name = EXCLUDED.name,
    address = EXCLUDED.address,
    plate_no = EXCLUDED.plate_no,
    age = EXCLUDED.age,
    sex = EXCLUDED.sex,
    kd_no = EXCLUDED.kd_no,
    updated_at = NOW()
RETURNING id`, v.Name, v.Address, v.DriversLicense, v.PlateNo, v.Age, v.Sex, v.KDNo).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert violator: %w", err)
	}
	return id, nil
}

// NextControlSeq increments the per-day counter. The first call for a day seeds
// it from the greatest existing control number with that prefix.
func (t *txRepository) NextControlSeq(ctx context.Context, prefix string) (int, error) {
	var seq int
	err := t.tx.QueryRow(ctx, `INSERT INTO control_no_sequences (day, last_seq)
VALUES ($1, COALESCE((
    SELECT MAX(CAST(split_part(control_no, '-', 2) AS INTEGER))
    FROM tickets
    WHERE control_no ~ ('^' || $1 || '-[0-9]{4}$')
), 0) + 1)
ON CONFLICT (day) DO UPDATE SET last_seq = control_no_sequences.last_seq + 1
RETURNING last_seq`, prefix).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next control seq: %w", err)
	}
	return seq, nil
}

func (t *txRepository) InsertTicket(ctx context.Context, ticket *Ticket) error {
	var total decimal.Decimal
	err := t.tx.QueryRow(ctx, `INSERT INTO tickets (control_no, violator_id, enforcer_id, violation_id, fine_amount,
    additional_fees, place_of_apprehension, apprehended_at, compliance_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
RETURNING id, total_amount, created_at, updated_at`,
		ticket.ControlNo, ticket.ViolatorID, ticket.EnforcerID, ticket.ViolationID, ticket.FineAmount,
		ticket.AdditionalFees, ticket.PlaceOfApprehension, ticket.ApprehendedAt, ticket.ComplianceDate, string(ticket.Status),
	).Scan(&ticket.ID, &total, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	ticket.TotalAmount = total
	return nil
}

func (t *txRepository) InsertTicketViolation(ctx context.Context, tv TicketViolation) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO ticket_violations (ticket_id, violation_id, fine_amount, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())`, tv.TicketID, tv.ViolationID, tv.FineAmount, tv.Remarks)
	if err != nil {
		return fmt.Errorf("insert ticket violation: %w", err)
	}
	return nil
}
