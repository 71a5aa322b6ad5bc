package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/observability"
	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/tickets"
)

// IdempotencyModule scopes cashier request keys.
const IdempotencyModule = "payments.record"

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// TicketFinder loads materialized tickets.
type TicketFinder interface {
	Get(ctx context.Context, id int64) (*tickets.Ticket, error)
	GetByControlNo(ctx context.Context, controlNo string) (*tickets.Ticket, error)
}

// KeyClaimer guards against replayed client requests.
type KeyClaimer interface {
	Claim(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Service is the settlement engine and payment journal.
type Service struct {
	repo        Repository
	tickets     TicketFinder
	keys        KeyClaimer
	invalidator tickets.Invalidator
	logger      *slog.Logger
	metrics     *observability.Metrics
	loc         *time.Location
	now         func() time.Time
}

// NewService creates the payment service.
func NewService(repo Repository, finder TicketFinder, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tickets: finder, logger: logger, metrics: metrics, loc: time.UTC, now: time.Now}
}

// SetKeyClaimer enables Idempotency-Key handling.
func (s *Service) SetKeyClaimer(keys KeyClaimer) {
	s.keys = keys
}

// SetLocation sets the business time zone used for journal date filters.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// SetInvalidator registers a cache to drop after each settlement change.
func (s *Service) SetInvalidator(inv tickets.Invalidator) {
	s.invalidator = inv
}

// RecordPayment settles amount against a ticket under its row lock. The sum of
// recorded payments never exceeds the ticket total plus the settlement epsilon.
func (s *Service) RecordPayment(ctx context.Context, req RecordRequest, recordedBy int64, idempotencyKey string) (*Settlement, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ticketID := req.TicketID
	if ticketID == 0 {
		t, err := s.tickets.GetByControlNo(ctx, req.ControlNo)
		if err != nil {
			return nil, err
		}
		ticketID = t.ID
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" && s.keys != nil {
		if err := s.keys.Claim(ctx, idempotencyKey, IdempotencyModule); err != nil {
			return nil, err
		}
	}

	var (
		payment     Payment
		outstanding decimal.Decimal
		status      tickets.Status
		lockedFor   time.Duration
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		start := time.Now()
		locked, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		paid, err := tx.SumRecorded(ctx, locked.ID)
		if err != nil {
			return err
		}
		if err := checkPayment(locked, paid, req.Amount); err != nil {
			return err
		}

		payment = Payment{
			TicketID:  locked.ID,
			Amount:    req.Amount,
			ReceiptNo: req.ReceiptNo,
			PaidAt:    s.now(),
			Status:    StatusRecorded,
			Remarks:   req.Remarks,
		}
		if recordedBy > 0 {
			payment.RecordedBy = &recordedBy
		}
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}

		newPaid := paid.Add(req.Amount)
		status = locked.Settle(newPaid)
		if status != locked.Status {
			if err := tx.UpdateTicketStatus(ctx, locked.ID, status); err != nil {
				return err
			}
		}
		outstanding = shared.Outstanding(locked.TotalAmount, newPaid)
		lockedFor = time.Since(start)
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, idempotencyKey)
		s.observeFailure(err, "record_payment", ticketID)
		return nil, err
	}

	s.metrics.PaymentRecorded(string(status), lockedFor)
	s.invalidate(ctx)
	s.logger.Info("payment recorded",
		slog.String("lock", shared.TicketLockKey(ticketID)),
		slog.Int64("payment_id", payment.ID),
		slog.String("amount", payment.Amount.StringFixed(2)),
		slog.String("outstanding", outstanding.StringFixed(2)),
		slog.String("ticket_status", string(status)))

	return &Settlement{
		Message:           "Payment recorded successfully.",
		Ticket:            s.reload(ctx, ticketID),
		Payment:           payment,
		OutstandingAmount: outstanding,
	}, nil
}

// VoidPayment reverses a recorded payment and re-evaluates the ticket status.
// The ticket is locked before the payment, in the same order as RecordPayment.
func (s *Service) VoidPayment(ctx context.Context, paymentID, voidedBy int64, reason string) (*Settlement, error) {
	reason = strings.TrimSpace(reason)
	if err := shared.ValidateStruct(VoidRequest{Reason: reason}); err != nil {
		return nil, err
	}
	if paymentID <= 0 {
		return nil, shared.NewValidationError("payment_id", "is invalid")
	}

	ticketID, err := s.repo.TicketIDForPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var (
		payment     Payment
		outstanding decimal.Decimal
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		payment, err = tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != StatusRecorded {
			return shared.NewValidationError("payment_id", "only recorded payments can be voided")
		}
		at := s.now()
		if err := tx.MarkReversed(ctx, payment.ID, voidedBy, reason, at); err != nil {
			return err
		}
		payment.Status = StatusReversed
		payment.VoidedBy = &voidedBy
		payment.VoidedAt = &at
		payment.VoidReason = &reason

		paid, err := tx.SumRecorded(ctx, locked.ID)
		if err != nil {
			return err
		}
		if status := locked.Settle(paid); status != locked.Status {
			if err := tx.UpdateTicketStatus(ctx, locked.ID, status); err != nil {
				return err
			}
		}
		outstanding = shared.Outstanding(locked.TotalAmount, paid)
		return nil
	})
	if err != nil {
		s.observeFailure(err, "void_payment", ticketID)
		return nil, err
	}

	s.metrics.PaymentVoided()
	s.invalidate(ctx)
	s.logger.Info("payment voided",
		slog.String("lock", shared.TicketLockKey(ticketID)),
		slog.Int64("payment_id", paymentID),
		slog.Int64("voided_by", voidedBy))

	return &Settlement{
		Message:           "Payment voided.",
		Ticket:            s.reload(ctx, ticketID),
		Payment:           payment,
		OutstandingAmount: outstanding,
	}, nil
}

// LookupOutstanding returns a ticket, its payments newest first and the balance due.
func (s *Service) LookupOutstanding(ctx context.Context, controlNo string) (*Lookup, error) {
	controlNo = strings.TrimSpace(controlNo)
	if controlNo == "" {
		return nil, shared.NewValidationError("control_no", "is required")
	}
	t, err := s.tickets.GetByControlNo(ctx, controlNo)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListForTicket(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	paid := decimal.Zero
	for _, p := range list {
		if p.Status == StatusRecorded {
			paid = paid.Add(p.Amount)
		}
	}
	return &Lookup{
		Ticket:            t,
		Violator:          t.Violator,
		Payments:          list,
		TotalPaid:         paid,
		OutstandingAmount: shared.Outstanding(t.TotalAmount, paid),
	}, nil
}

// RecentUnpaid lists the newest unpaid tickets.
func (s *Service) RecentUnpaid(ctx context.Context, limit int) ([]UnpaidTicket, error) {
	return s.repo.RecentUnpaid(ctx, clampLimit(limit))
}

// RecentPaid lists the newest recorded payments with their tickets.
func (s *Service) RecentPaid(ctx context.Context, limit int) ([]JournalEntry, error) {
	return s.repo.RecentPaid(ctx, clampLimit(limit))
}

// List pages through the payment journal.
func (s *Service) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	req = req.normalized()
	entries, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	page := req.Offset/req.Limit + 1
	return &ListResponse{Data: entries, Pagination: shared.NewPagination(page, req.Limit, total)}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

func (s *Service) reload(ctx context.Context, ticketID int64) *tickets.Ticket {
	t, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		s.logger.Warn("reload ticket after settlement", slog.Int64("ticket_id", ticketID), slog.Any("error", err))
		return nil
	}
	return t
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.keys == nil {
		return
	}
	if err := s.keys.Release(ctx, key, IdempotencyModule); err != nil {
		s.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("report cache invalidate failed", slog.Any("error", err))
	}
}

func (s *Service) observeFailure(err error, operation string, ticketID int64) {
	switch {
	case errors.Is(err, shared.ErrOverpayment):
		s.metrics.OverpaymentRejected()
		s.logger.Info("payment rejected", slog.String("lock", shared.TicketLockKey(ticketID)), slog.Any("error", err))
	case errors.Is(err, shared.ErrConflict):
		s.metrics.Conflict(operation)
		s.logger.Warn("settlement conflict", slog.String("lock", shared.TicketLockKey(ticketID)), slog.String("operation", operation), slog.Any("error", err))
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrNotFound):
	default:
		s.logger.Error(fmt.Sprintf("%s failed", operation), slog.Int64("ticket_id", ticketID), slog.Any("error", err))
	}
}
