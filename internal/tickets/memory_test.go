package tickets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/violations"
)

// memoryRepo is an in-memory Repository. Transactions are serialized and roll
// back by restoring a snapshot.
type memoryRepo struct {
	mu        sync.Mutex
	catalog   map[int64]violations.Violation
	violators map[string]Violator
	tickets   map[int64]Ticket
	seqs      map[string]int
	payments  map[int64][]PaymentSummary
	enforcers map[int64]Enforcer

	nextViolatorID int64
	nextTicketID   int64

	conflicts int
	attempts  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		catalog: map[int64]violations.Violation{
			1: {ID: 1, Type: "Moving", Name: "Reckless driving", Fine: decimal.RequireFromString("500.00")},
			2: {ID: 2, Type: "Moving", Name: "No helmet", Fine: decimal.RequireFromString("300.00")},
			3: {ID: 3, Type: "Warning", Name: "First offense warning", Fine: decimal.Zero},
		},
		violators: map[string]Violator{},
		tickets:   map[int64]Ticket{},
		seqs:      map[string]int{},
		payments:  map[int64][]PaymentSummary{},
		enforcers: map[int64]Enforcer{},
	}
}

type memorySnapshot struct {
	violators      map[string]Violator
	tickets        map[int64]Ticket
	seqs           map[string]int
	nextViolatorID int64
	nextTicketID   int64
}

func (m *memoryRepo) snapshot() memorySnapshot {
	s := memorySnapshot{
		violators:      make(map[string]Violator, len(m.violators)),
		tickets:        make(map[int64]Ticket, len(m.tickets)),
		seqs:           make(map[string]int, len(m.seqs)),
		nextViolatorID: m.nextViolatorID,
		nextTicketID:   m.nextTicketID,
	}
	for k, v := range m.violators {
		s.violators[k] = v
	}
	for k, v := range m.tickets {
		s.tickets[k] = v
	}
	for k, v := range m.seqs {
		s.seqs[k] = v
	}
	return s
}

func (m *memoryRepo) restore(s memorySnapshot) {
	m.violators = s.violators
	m.tickets = s.tickets
	m.seqs = s.seqs
	m.nextViolatorID = s.nextViolatorID
	m.nextTicketID = s.nextTicketID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	snap := m.snapshot()
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryRepo) materialize(t Ticket) *Ticket {
	for _, v := range m.violators {
		if v.ID == t.ViolatorID {
			vv := v
			t.Violator = &vv
		}
	}
	if e, ok := m.enforcers[t.EnforcerID]; ok {
		t.Enforcer = &e
	}
	t.Violations = append([]TicketViolation(nil), t.Violations...)
	return &t
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, shared.NotFoundf("ticket %d", id)
	}
	return m.materialize(t), nil
}

func (m *memoryRepo) GetByControlNo(_ context.Context, controlNo string) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.ControlNo == controlNo {
			return m.materialize(t), nil
		}
	}
	return nil, shared.NotFoundf("ticket %s", controlNo)
}

func (m *memoryRepo) LatestPayment(_ context.Context, ticketID int64) (*PaymentSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.payments[ticketID]
	if len(list) == 0 {
		return nil, nil
	}
	p := list[len(list)-1]
	return &p, nil
}

func (m *memoryRepo) EnforcerDay(_ context.Context, enforcerID int64, from, to time.Time) (EnforcerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := EnforcerStats{TotalFines: decimal.Zero}
	for _, t := range m.tickets {
		if t.EnforcerID != enforcerID || t.ApprehendedAt.Before(from) || !t.ApprehendedAt.Before(to) {
			continue
		}
		stats.TicketsToday++
		stats.TotalFines = stats.TotalFines.Add(t.TotalAmount)
		at := t.ApprehendedAt
		if stats.LastCitationAt == nil || at.After(*stats.LastCitationAt) {
			stats.LastCitationAt = &at
		}
	}
	return stats, nil
}

func (m *memoryRepo) CountOverdue(_ context.Context, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickets {
		if t.Status == StatusUnpaid && t.ComplianceDate != nil && t.ComplianceDate.Before(asOf) {
			n++
		}
	}
	return n, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) LoadViolations(_ context.Context, ids []int64) ([]violations.Violation, error) {
	var out []violations.Violation
	for _, id := range ids {
		if v, ok := t.repo.catalog[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (t *memoryTx) UpsertViolator(_ context.Context, v Violator) (int64, error) {
	if existing, ok := t.repo.violators[v.DriversLicense]; ok {
		v.ID = existing.ID
	} else {
		t.repo.nextViolatorID++
		v.ID = t.repo.nextViolatorID
	}
	t.repo.violators[v.DriversLicense] = v
	return v.ID, nil
}

func (t *memoryTx) NextControlSeq(_ context.Context, prefix string) (int, error) {
	if seq, ok := t.repo.seqs[prefix]; ok {
		t.repo.seqs[prefix] = seq + 1
		return seq + 1, nil
	}
	existing := make([]string, 0, len(t.repo.tickets))
	for _, ticket := range t.repo.tickets {
		existing = append(existing, ticket.ControlNo)
	}
	seq := NextSequence(prefix, existing)
	t.repo.seqs[prefix] = seq
	return seq, nil
}

func (t *memoryTx) InsertTicket(_ context.Context, ticket *Ticket) error {
	if t.repo.conflicts > 0 {
		t.repo.conflicts--
		return fmt.Errorf("insert ticket: %w", shared.ErrConflict)
	}
	for _, existing := range t.repo.tickets {
		if existing.ControlNo == ticket.ControlNo {
			return fmt.Errorf("duplicate control_no %s: %w", ticket.ControlNo, shared.ErrConflict)
		}
	}
	t.repo.nextTicketID++
	ticket.ID = t.repo.nextTicketID
	ticket.TotalAmount = ticket.FineAmount.Add(ticket.AdditionalFees)
	stored := *ticket
	stored.Violator = nil
	stored.Violations = nil
	t.repo.tickets[ticket.ID] = stored
	return nil
}

func (t *memoryTx) InsertTicketViolation(_ context.Context, tv TicketViolation) error {
	stored := t.repo.tickets[tv.TicketID]
	for _, line := range stored.Violations {
		if line.ViolationID == tv.ViolationID {
			return fmt.Errorf("duplicate ticket violation: %w", shared.ErrConflict)
		}
	}
	stored.Violations = append(stored.Violations, tv)
	t.repo.tickets[tv.TicketID] = stored
	return nil
}
