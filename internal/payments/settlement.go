package payments

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/tickets"
)

func settledStatus(paid, total decimal.Decimal) tickets.Status {
	if shared.Covers(paid, total) {
		return tickets.StatusPaid
	}
	return tickets.StatusUnpaid
}

// checkPayment enforces the no-overpay rule for amount on top of alreadyPaid.
func checkPayment(ticket LockedTicket, alreadyPaid, amount decimal.Decimal) error {
	if ticket.Status == tickets.StatusCancelled {
		return shared.NewValidationError("ticket_id", "ticket is cancelled")
	}
	if shared.Exceeds(alreadyPaid.Add(amount), ticket.TotalAmount) {
		return &shared.OverpaymentError{
			Attempted:   amount,
			Outstanding: shared.Outstanding(ticket.TotalAmount, alreadyPaid),
		}
	}
	return nil
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
