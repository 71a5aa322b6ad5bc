package payments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/tickets"
)

// memoryRepo emulates row locks with one channel per ticket. Writes made inside
// a transaction are applied only on commit.
type memoryRepo struct {
	mu            sync.Mutex
	tickets       map[int64]*LockedTicket
	payments      map[int64]Payment
	locks         map[int64]chan struct{}
	nextPaymentID int64
	lockTimeout   time.Duration
	txCount       int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		tickets:     map[int64]*LockedTicket{},
		payments:    map[int64]Payment{},
		locks:       map[int64]chan struct{}{},
		lockTimeout: 2 * time.Second,
	}
}

func (m *memoryRepo) addTicket(id int64, controlNo, total string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[id] = &LockedTicket{ID: id, ControlNo: controlNo, TotalAmount: decimal.RequireFromString(total), Status: tickets.StatusUnpaid}
	m.locks[id] = make(chan struct{}, 1)
}

func (m *memoryRepo) ticketStatus(id int64) tickets.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id].Status
}

func (m *memoryRepo) recordedSum(ticketID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.TicketID == ticketID && p.Status == StatusRecorded {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

func (m *memoryRepo) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

// holdLock takes the ticket lock as another session would; the returned func releases it.
func (m *memoryRepo) holdLock(ticketID int64) func() {
	m.mu.Lock()
	ch := m.locks[ticketID]
	m.mu.Unlock()
	ch <- struct{}{}
	return func() { <-ch }
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	m.txCount++
	m.mu.Unlock()
	tx := &memoryTx{repo: m, statuses: map[int64]tickets.Status{}, reversed: map[int64]Payment{}}
	defer tx.unlockAll()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *memoryRepo) ListForTicket(_ context.Context, ticketID int64) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Payment{}
	for _, p := range m.payments {
		if p.TicketID == ticketID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].PaidAt.After(out[j].PaidAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryRepo) RecentUnpaid(_ context.Context, limit int) ([]UnpaidTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []UnpaidTicket{}
	for _, t := range m.tickets {
		if t.Status == tickets.StatusUnpaid {
			out = append(out, UnpaidTicket{ID: t.ID, ControlNo: t.ControlNo, TotalAmount: t.TotalAmount})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) journal(filter func(Payment) bool) []JournalEntry {
	out := []JournalEntry{}
	for _, p := range m.payments {
		if !filter(p) {
			continue
		}
		out = append(out, JournalEntry{ID: p.ID, TicketID: p.TicketID, ReceiptNo: p.ReceiptNo, ControlNo: m.tickets[p.TicketID].ControlNo, Amount: p.Amount, Status: p.Status, PaidAt: p.PaidAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memoryRepo) RecentPaid(_ context.Context, limit int) ([]JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.journal(func(p Payment) bool { return p.Status == StatusRecorded })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) List(_ context.Context, req ListRequest) ([]JournalEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.journal(func(p Payment) bool { return req.Status == "" || p.Status == req.Status })
	total := len(all)
	if req.Offset >= total {
		return []JournalEntry{}, total, nil
	}
	end := req.Offset + req.Limit
	if end > total {
		end = total
	}
	return all[req.Offset:end], total, nil
}

func (m *memoryRepo) TicketIDForPayment(_ context.Context, paymentID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return 0, shared.NotFoundf("payment %d", paymentID)
	}
	return p.TicketID, nil
}

// Get and GetByControlNo make memoryRepo a TicketFinder as well.
func (m *memoryRepo) Get(_ context.Context, id int64) (*tickets.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, shared.NotFoundf("ticket %d", id)
	}
	return &tickets.Ticket{ID: t.ID, ControlNo: t.ControlNo, TotalAmount: t.TotalAmount, FineAmount: t.TotalAmount, Status: t.Status}, nil
}

func (m *memoryRepo) GetByControlNo(ctx context.Context, controlNo string) (*tickets.Ticket, error) {
	m.mu.Lock()
	var id int64
	for _, t := range m.tickets {
		if t.ControlNo == controlNo {
			id = t.ID
		}
	}
	m.mu.Unlock()
	if id == 0 {
		return nil, shared.NotFoundf("ticket %s", controlNo)
	}
	return m.Get(ctx, id)
}

type memoryTx struct {
	repo     *memoryRepo
	held     []chan struct{}
	inserted []Payment
	reversed map[int64]Payment
	statuses map[int64]tickets.Status
}

func (t *memoryTx) unlockAll() {
	for _, ch := range t.held {
		<-ch
	}
}

func (t *memoryTx) commit() {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, p := range t.inserted {
		t.repo.payments[p.ID] = p
	}
	for id, p := range t.reversed {
		t.repo.payments[id] = p
	}
	for id, status := range t.statuses {
		t.repo.tickets[id].Status = status
	}
}

func (t *memoryTx) LockTicket(ctx context.Context, ticketID int64) (LockedTicket, error) {
	t.repo.mu.Lock()
	ch, ok := t.repo.locks[ticketID]
	t.repo.mu.Unlock()
	if !ok {
		return LockedTicket{}, shared.NotFoundf("ticket %d", ticketID)
	}
	select {
	case ch <- struct{}{}:
		t.held = append(t.held, ch)
	case <-time.After(t.repo.lockTimeout):
		return LockedTicket{}, fmt.Errorf("lock ticket %d: %w", ticketID, shared.ErrConflict)
	case <-ctx.Done():
		return LockedTicket{}, ctx.Err()
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	return *t.repo.tickets[ticketID], nil
}

func (t *memoryTx) LockPayment(_ context.Context, paymentID int64) (Payment, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	p, ok := t.repo.payments[paymentID]
	if !ok {
		return Payment{}, shared.NotFoundf("payment %d", paymentID)
	}
	return p, nil
}

func (t *memoryTx) SumRecorded(_ context.Context, ticketID int64) (decimal.Decimal, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	sum := decimal.Zero
	for id, p := range t.repo.payments {
		if r, ok := t.reversed[id]; ok {
			p = r
		}
		if p.TicketID == ticketID && p.Status == StatusRecorded {
			sum = sum.Add(p.Amount)
		}
	}
	for _, p := range t.inserted {
		if p.TicketID == ticketID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (t *memoryTx) InsertPayment(_ context.Context, p *Payment) error {
	t.repo.mu.Lock()
	t.repo.nextPaymentID++
	p.ID = t.repo.nextPaymentID
	t.repo.mu.Unlock()
	p.CreatedAt = p.PaidAt
	t.inserted = append(t.inserted, *p)
	return nil
}

func (t *memoryTx) MarkReversed(_ context.Context, paymentID, voidedBy int64, reason string, at time.Time) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	p, ok := t.repo.payments[paymentID]
	if !ok || p.Status != StatusRecorded {
		return shared.NewValidationError("payment_id", "payment is not recorded")
	}
	p.Status = StatusReversed
	p.VoidedBy = &voidedBy
	p.VoidReason = &reason
	p.VoidedAt = &at
	t.reversed[paymentID] = p
	return nil
}

func (t *memoryTx) UpdateTicketStatus(_ context.Context, ticketID int64, status tickets.Status) error {
	t.statuses[ticketID] = status
	return nil
}

type memoryKeys struct {
	mu   sync.Mutex
	used map[string]bool
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{used: map[string]bool{}}
}

func (k *memoryKeys) Claim(_ context.Context, key, module string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := module + ":" + key
	if k.used[id] {
		return shared.ErrIdempotencyReplay
	}
	k.used[id] = true
	return nil
}

func (k *memoryKeys) Release(_ context.Context, key, module string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.used, module+":"+key)
	return nil
}
