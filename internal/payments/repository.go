package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/platform/db"
	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/tickets"
)

// Repository defines payment journal persistence.
type Repository interface {
	ListForTicket(ctx context.Context, ticketID int64) ([]Payment, error)
	RecentUnpaid(ctx context.Context, limit int) ([]UnpaidTicket, error)
	RecentPaid(ctx context.Context, limit int) ([]JournalEntry, error)
	List(ctx context.Context, req ListRequest) ([]JournalEntry, int, error)
	TicketIDForPayment(ctx context.Context, paymentID int64) (int64, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the reads and writes performed under the ticket lock.
type TxRepository interface {
	LockTicket(ctx context.Context, ticketID int64) (LockedTicket, error)
	LockPayment(ctx context.Context, paymentID int64) (Payment, error)
	SumRecorded(ctx context.Context, ticketID int64) (decimal.Decimal, error)
	InsertPayment(ctx context.Context, p *Payment) error
	MarkReversed(ctx context.Context, paymentID, voidedBy int64, reason string, at time.Time) error
	UpdateTicketStatus(ctx context.Context, ticketID int64, status tickets.Status) error
}

type repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository creates a pgx-backed payment repository.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) Repository {
	return &repository{pool: pool, lockTimeout: lockTimeout}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction bounded by the lock timeout.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.TxOptions{IsoLevel: pgx.ReadCommitted, LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const paymentColumns = `id, ticket_id, recorded_by, amount, receipt_no, paid_at, status, remarks, voided_by, voided_at, void_reason, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p      Payment
		status string
	)
	err := row.Scan(&p.ID, &p.TicketID, &p.RecordedBy, &p.Amount, &p.ReceiptNo, &p.PaidAt, &status, &p.Remarks,
		&p.VoidedBy, &p.VoidedAt, &p.VoidReason, &p.CreatedAt)
	p.Status = Status(status)
	return p, err
}

func (r *repository) ListForTicket(ctx context.Context, ticketID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE ticket_id = $1 ORDER BY paid_at DESC, id DESC`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket payments: %w", err)
	}
	defer rows.Close()
	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) RecentUnpaid(ctx context.Context, limit int) ([]UnpaidTicket, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.control_no, v.name, v.drivers_license, t.total_amount, t.apprehended_at, t.created_at
FROM tickets t
JOIN violators v ON v.id = t.violator_id
WHERE t.status = 'unpaid'
ORDER BY t.created_at DESC, t.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent unpaid tickets: %w", err)
	}
	defer rows.Close()
	out := []UnpaidTicket{}
	for rows.Next() {
		var u UnpaidTicket
		if err := rows.Scan(&u.ID, &u.ControlNo, &u.ViolatorName, &u.DriversLicense, &u.TotalAmount, &u.ApprehendedAt, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const journalSelect = `SELECT p.id, p.ticket_id, p.receipt_no, t.control_no, v.name, p.amount, p.status, p.paid_at, u.full_name
FROM payments p
JOIN tickets t ON t.id = p.ticket_id
JOIN violators v ON v.id = t.violator_id
LEFT JOIN users u ON u.id = p.recorded_by`

func scanJournal(rows pgx.Rows) ([]JournalEntry, error) {
	defer rows.Close()
	out := []JournalEntry{}
	for rows.Next() {
		var (
			e      JournalEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.TicketID, &e.ReceiptNo, &e.ControlNo, &e.ViolatorName, &e.Amount, &status, &e.PaidAt, &e.CashierName); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) RecentPaid(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, journalSelect+` WHERE p.status = 'recorded' ORDER BY p.paid_at DESC, p.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	return scanJournal(rows)
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]JournalEntry, int, error) {
	var (
		where []string
		args  []any
	)
	if req.Status != "" {
		args = append(args, string(req.Status))
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if req.From != nil {
		args = append(args, *req.From)
		where = append(where, fmt.Sprintf("p.paid_at >= $%d", len(args)))
	}
	if req.To != nil {
		args = append(args, *req.To)
		where = append(where, fmt.Sprintf("p.paid_at < $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments p`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	args = append(args, req.Limit, req.Offset)
	query := journalSelect + clause + fmt.Sprintf(" ORDER BY p.paid_at DESC, p.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	entries, err := scanJournal(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *repository) TicketIDForPayment(ctx context.Context, paymentID int64) (int64, error) {
	var ticketID int64
	err := r.pool.QueryRow(ctx, `SELECT ticket_id FROM payments WHERE id = $1`, paymentID).Scan(&ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.NotFoundf("payment %d", paymentID)
		}
		return 0, fmt.Errorf("payment ticket: %w", err)
	}
	return ticketID, nil
}

func (t *txRepository) LockTicket(ctx context.Context, ticketID int64) (LockedTicket, error) {
	var (
		lt     LockedTicket
		status string
	)
	err := t.tx.QueryRow(ctx, `SELECT id, control_no, total_amount, status FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).
		Scan(&lt.ID, &lt.ControlNo, &lt.TotalAmount, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LockedTicket{}, shared.NotFoundf("ticket %d", ticketID)
		}
		return LockedTicket{}, fmt.Errorf("lock ticket: %w", err)
	}
	lt.Status = tickets.Status(status)
	return lt, nil
}

func (t *txRepository) LockPayment(ctx context.Context, paymentID int64) (Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.NotFoundf("payment %d", paymentID)
		}
		return Payment{}, fmt.Errorf("lock payment: %w", err)
	}
	return p, nil
}

func (t *txRepository) SumRecorded(ctx context.Context, ticketID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE ticket_id = $1 AND status = 'recorded'`, ticketID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

func (t *txRepository) InsertPayment(ctx context.Context, p *Payment) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO payments (ticket_id, recorded_by, amount, receipt_no, paid_at, status, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING id, created_at`, p.TicketID, p.RecordedBy, p.Amount, p.ReceiptNo, p.PaidAt, string(p.Status), p.Remarks).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *txRepository) MarkReversed(ctx context.Context, paymentID, voidedBy int64, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE payments SET status = 'reversed', voided_by = $2, void_reason = $3, voided_at = $4, updated_at = NOW()
WHERE id = $1 AND status = 'recorded'`, paymentID, voidedBy, reason, at)
	if err != nil {
		return fmt.Errorf("reverse payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewValidationError("payment_id", "payment is not recorded")
	}
	return nil
}

func (t *txRepository) UpdateTicketStatus(ctx context.Context, ticketID int64, status tickets.Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE tickets SET status = $2, updated_at = NOW() WHERE id = $1`, ticketID, string(status))
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	return nil
}
