package tickets

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/observability"
	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/violations"
)

// Invalidator drops derived caches after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Options tunes the ticket service.
type Options struct {
	Location     *time.Location
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Service implements issuance and ticket reads.
type Service struct {
	repo        Repository
	logger      *slog.Logger
	metrics     *observability.Metrics
	invalidator Invalidator
	loc         *time.Location
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// NewService creates a ticket service.
func NewService(repo Repository, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 25 * time.Millisecond
	}
	return &Service{
		repo:        repo,
		logger:      logger,
		metrics:     metrics,
		loc:         opts.Location,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RetryBackoff,
		now:         time.Now,
	}
}

// SetInvalidator registers a cache to drop after each committed ticket.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// Location returns the business time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// InitialStatus applies the settlement rule to a ticket with no payments.
func InitialStatus(total decimal.Decimal) Status {
	if shared.Covers(decimal.Zero, total) {
		return StatusPaid
	}
	return StatusUnpaid
}

// Issue validates the request and commits a ticket with its violator, violation
// lines and a fresh control number in one transaction.
func (s *Service) Issue(ctx context.Context, req IssueRequest, enforcerID int64) (*Ticket, error) {
	if enforcerID <= 0 {
		return nil, shared.NewValidationError("enforcer_id", "is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids := req.ViolationIDs()
	fees := decimal.Zero
	if req.AdditionalFees != nil {
		fees = *req.AdditionalFees
	}

	var issued *Ticket
	err := shared.RetryConflicts(ctx, s.maxAttempts, s.backoff, func(attempt int) error {
		if attempt > 1 {
			s.metrics.Conflict("issue_ticket")
			s.logger.Warn("ticket issuance retry", slog.Int("attempt", attempt), slog.Int64("enforcer_id", enforcerID))
		}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			ticket, err := s.issueTx(ctx, tx, req, ids, fees, enforcerID)
			if err != nil {
				return err
			}
			issued = ticket
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			s.logger.Warn("ticket issuance gave up", slog.Int("attempts", s.maxAttempts), slog.Any("error", err))
		}
		return nil, err
	}

	s.metrics.TicketIssued()
	s.invalidate(ctx)
	s.logger.Info("ticket issued",
		slog.Int64("ticket_id", issued.ID),
		slog.String("control_no", issued.ControlNo),
		slog.Int64("enforcer_id", enforcerID),
		slog.String("total_amount", issued.TotalAmount.StringFixed(2)))

	full, err := s.repo.Get(ctx, issued.ID)
	if err != nil {
		s.logger.Warn("reload issued ticket", slog.Int64("ticket_id", issued.ID), slog.Any("error", err))
		return issued, nil
	}
	return full, nil
}

func (s *Service) issueTx(ctx context.Context, tx TxRepository, req IssueRequest, ids []int64, fees decimal.Decimal, enforcerID int64) (*Ticket, error) {
	catalog, err := tx.LoadViolations(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]violations.Violation, len(catalog))
	for _, v := range catalog {
		byID[v.ID] = v
	}
	fines := make([]decimal.Decimal, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, shared.NotFoundf("violation %d", id)
		}
		fines = append(fines, v.Fine)
	}
	fine := shared.Sum(fines...)
	if fine.Add(fees).GreaterThan(shared.MaxAmount) {
		return nil, shared.NewValidationError("total_amount", "must not exceed "+shared.MaxAmount.StringFixed(2))
	}

	violator := Violator{
		Name:           req.ViolatorName,
		Address:        req.Address,
		DriversLicense: req.DriversLicense,
		PlateNo:        req.PlateNo,
		Age:            req.Age,
		Sex:            req.Sex,
		KDNo:           req.KDNo,
	}
	violator.ID, err = tx.UpsertViolator(ctx, violator)
	if err != nil {
		return nil, err
	}

	now := s.now()
	prefix := ControlPrefix(now, s.loc)
	seq, err := tx.NextControlSeq(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if seq > MaxDailySequence {
		return nil, ErrDailyLimitReached
	}

	ticket := &Ticket{
		ControlNo:           FormatControlNo(prefix, seq),
		ViolatorID:          violator.ID,
		EnforcerID:          enforcerID,
		ViolationID:         ids[0],
		FineAmount:          fine,
		AdditionalFees:      fees,
		PlaceOfApprehension: req.PlaceOfApprehension,
		ApprehendedAt:       now,
		ComplianceDate:      req.complianceDate(s.loc),
		Violator:            &violator,
	}
	ticket.TotalAmount = ticket.Total()
	ticket.Status = InitialStatus(ticket.TotalAmount)
	if err := tx.InsertTicket(ctx, ticket); err != nil {
		return nil, err
	}

	ticket.Violations = make([]TicketViolation, 0, len(req.Violations))
	for _, item := range req.Violations {
		v := byID[item.ViolationID]
		line := TicketViolation{
			TicketID:    ticket.ID,
			ViolationID: v.ID,
			FineAmount:  v.Fine,
			Remarks:     item.Remarks,
			Name:        v.Name,
			Type:        v.Type,
			OrdinanceNo: v.OrdinanceNo,
		}
		if err := tx.InsertTicketViolation(ctx, line); err != nil {
			return nil, err
		}
		ticket.Violations = append(ticket.Violations, line)
	}
	return ticket, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("report cache invalidate failed", slog.Any("error", err))
	}
}

// Get returns a fully materialized ticket.
func (s *Service) Get(ctx context.Context, id int64) (*Ticket, error) {
	return s.repo.Get(ctx, id)
}

// GetByControlNo returns a fully materialized ticket by its control number.
func (s *Service) GetByControlNo(ctx context.Context, controlNo string) (*Ticket, error) {
	return s.repo.GetByControlNo(ctx, controlNo)
}

// EnforcerToday summarizes the enforcer's citations for the current business day.
func (s *Service) EnforcerToday(ctx context.Context, enforcerID int64) (EnforcerStats, error) {
	from, to := s.dayBounds(s.now())
	stats, err := s.repo.EnforcerDay(ctx, enforcerID, from, to)
	if err != nil {
		return EnforcerStats{}, err
	}
	stats.Date = from.Format("2006-01-02")
	return stats, nil
}

// CountOverdue counts unpaid tickets whose compliance date has passed.
func (s *Service) CountOverdue(ctx context.Context) (int, error) {
	from, _ := s.dayBounds(s.now())
	return s.repo.CountOverdue(ctx, from)
}

func (s *Service) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1)
}
