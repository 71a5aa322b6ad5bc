package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/tickets"
)

// Status enumerates payment journal states.
type Status string

const (
	StatusRecorded Status = "recorded"
	StatusReversed Status = "reversed"
)

// Payment is one journal entry against a ticket.
type Payment struct {
	ID         int64           `json:"id"`
	TicketID   int64           `json:"ticket_id"`
	RecordedBy *int64          `json:"recorded_by"`
	Amount     decimal.Decimal `json:"amount"`
	ReceiptNo  string          `json:"receipt_no"`
	PaidAt     time.Time       `json:"paid_at"`
	Status     Status          `json:"status"`
	Remarks    *string         `json:"remarks"`
	VoidedBy   *int64          `json:"voided_by,omitempty"`
	VoidedAt   *time.Time      `json:"voided_at,omitempty"`
	VoidReason *string         `json:"void_reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// LockedTicket is the ticket row as read under FOR UPDATE.
type LockedTicket struct {
	ID          int64
	ControlNo   string
	TotalAmount decimal.Decimal
	Status      tickets.Status
}

// Settle returns the status a ticket with the given recorded sum should carry.
// Cancelled tickets keep their status.
func (t LockedTicket) Settle(paid decimal.Decimal) tickets.Status {
	if t.Status == tickets.StatusCancelled {
		return t.Status
	}
	return settledStatus(paid, t.TotalAmount)
}

// Lookup is a ticket with its journal and outstanding balance.
type Lookup struct {
	Ticket            *tickets.Ticket   `json:"ticket"`
	Violator          *tickets.Violator `json:"violator"`
	Payments          []Payment         `json:"payments"`
	TotalPaid         decimal.Decimal   `json:"total_paid"`
	OutstandingAmount decimal.Decimal   `json:"outstanding_amount"`
}

// Settlement is the outcome of a recorded or voided payment.
type Settlement struct {
	Message           string          `json:"message"`
	Ticket            *tickets.Ticket `json:"ticket"`
	Payment           Payment         `json:"payment"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

// UnpaidTicket is a row of the clerk's unpaid queue.
type UnpaidTicket struct {
	ID             int64           `json:"id"`
	ControlNo      string          `json:"control_no"`
	ViolatorName   string          `json:"violator_name"`
	DriversLicense string          `json:"drivers_license"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ApprehendedAt  time.Time       `json:"apprehended_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// JournalEntry is a payment joined with its ticket, violator and cashier.
type JournalEntry struct {
	ID           int64           `json:"id"`
	TicketID     int64           `json:"ticket_id"`
	ReceiptNo    string          `json:"receipt_no"`
	ControlNo    string          `json:"control_no"`
	ViolatorName string          `json:"violator_name"`
	Amount       decimal.Decimal `json:"amount"`
	Status       Status          `json:"status"`
	PaidAt       time.Time       `json:"paid_at"`
	CashierName  *string         `json:"cashier_name"`
}
