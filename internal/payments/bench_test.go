package payments

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/tickets"
)

func BenchmarkCheckPayment(b *testing.B) {
	ticket := LockedTicket{ID: 1, TotalAmount: dec("1250.00"), Status: tickets.StatusUnpaid}
	paid := dec("600.00")
	amount := dec("650.004")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := checkPayment(ticket, paid, amount); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRecordPaymentParallelTickets(b *testing.B) {
	repo := newMemoryRepo()
	const ticketCount = 64
	for i := int64(1); i <= ticketCount; i++ {
		repo.addTicket(i, fmt.Sprintf("20250305-%04d", i), "1000000000.00")
	}
	svc := newTestService(repo)
	amount := decimal.RequireFromString("0.01")
	var next atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ticketID := next.Add(1)%ticketCount + 1
		n := 0
		for pb.Next() {
			n++
			req := RecordRequest{TicketID: ticketID, Amount: amount, ReceiptNo: fmt.Sprintf("OR-%d-%d", ticketID, n)}
			if _, err := svc.RecordPayment(context.Background(), req, 5, ""); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
