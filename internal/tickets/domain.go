package tickets

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates ticket settlement states.
type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Violator is a person cited by an enforcer, identified by driver's license.
type Violator struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Address        *string `json:"address"`
	DriversLicense string  `json:"drivers_license"`
	PlateNo        *string `json:"plate_no"`
	Age            *int    `json:"age"`
	Sex            *string `json:"sex"`
	KDNo           *string `json:"kd_no"`
}

// Enforcer is the issuing officer as shown on a ticket.
type Enforcer struct {
	ID         int64   `json:"id"`
	FullName   string  `json:"full_name"`
	EnforcerNo *string `json:"enforcer_no"`
}

// TicketViolation is one cited offense with its fine frozen at issuance.
type TicketViolation struct {
	TicketID    int64           `json:"ticket_id"`
	ViolationID int64           `json:"violation_id"`
	FineAmount  decimal.Decimal `json:"fine_amount"`
	Remarks     *string         `json:"remarks"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	OrdinanceNo *string         `json:"ordinance_no"`
}

// Ticket is the citation ledger entry.
type Ticket struct {
	ID                  int64             `json:"id"`
	ControlNo           string            `json:"control_no"`
	ViolatorID          int64             `json:"violator_id"`
	EnforcerID          int64             `json:"enforcer_id"`
	ViolationID         int64             `json:"violation_id"`
	FineAmount          decimal.Decimal   `json:"fine_amount"`
	AdditionalFees      decimal.Decimal   `json:"additional_fees"`
	TotalAmount         decimal.Decimal   `json:"total_amount"`
	PlaceOfApprehension *string           `json:"place_of_apprehension"`
	ApprehendedAt       time.Time         `json:"apprehended_at"`
	ComplianceDate      *time.Time        `json:"compliance_date"`
	Status              Status            `json:"status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Violator            *Violator         `json:"violator,omitempty"`
	Enforcer            *Enforcer         `json:"enforcer,omitempty"`
	Violations          []TicketViolation `json:"violations"`
}

// Total recomputes fine plus additional fees.
func (t Ticket) Total() decimal.Decimal {
	return t.FineAmount.Add(t.AdditionalFees)
}

// PaymentSummary is the newest recorded payment attached to a print view.
type PaymentSummary struct {
	ReceiptNo string          `json:"receipt_no"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

// EnforcerStats summarizes an enforcer's citations for one business day.
type EnforcerStats struct {
	Date           string          `json:"date"`
	TicketsToday   int             `json:"tickets_today"`
	TotalFines     decimal.Decimal `json:"total_fines"`
	LastCitationAt *time.Time      `json:"last_citation_at"`
}
