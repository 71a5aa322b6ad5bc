package tickets

import (
	"github.com/shopspring/decimal"
)

// IssueViolation selects one catalog entry for a new ticket.
type IssueViolation struct {
	ViolationID int64   `json:"violation_id" validate:"gt=0"`
	Remarks     *string `json:"remarks" validate:"omitempty,max=1000"`
}

// IssueRequest is the enforcer's citation payload.
type IssueRequest struct {
	ViolatorName        string           `json:"violator_name" validate:"required,max=255"`
	Address             *string          `json:"address" validate:"omitempty,max=255"`
	DriversLicense      string           `json:"drivers_license" validate:"required,max=255"`
	PlateNo             *string          `json:"plate_no" validate:"omitempty,max=255"`
	Age                 *int             `json:"age" validate:"omitempty,gte=0,lte=150"`
	Sex                 *string          `json:"sex" validate:"omitempty,max=10"`
	KDNo                *string          `json:"kd_no" validate:"omitempty,max=255"`
	Violations          []IssueViolation `json:"violations" validate:"required,min=1,dive"`
	AdditionalFees      *decimal.Decimal `json:"additional_fees"`
	PlaceOfApprehension *string          `json:"place_of_apprehension" validate:"omitempty,max=255"`
	ComplianceDate      *string          `json:"compliance_date" validate:"omitempty,datetime=2006-01-02"`
}

// IssueResponse is returned after a ticket is committed.
type IssueResponse struct {
	Message string  `json:"message"`
	Ticket  *Ticket `json:"ticket"`
}

// PrintViolator is the violator block of a printed citation.
type PrintViolator struct {
	Name           string  `json:"name"`
	Address        *string `json:"address"`
	DriversLicense string  `json:"drivers_license"`
	PlateNo        *string `json:"plate_no"`
	KDNo           *string `json:"kd_no"`
}

// PrintEnforcer is the enforcer block of a printed citation.
type PrintEnforcer struct {
	Name       string  `json:"name"`
	EnforcerNo *string `json:"enforcer_no"`
}

// PrintLine is one numbered violation on a printed citation.
type PrintLine struct {
	Index       int             `json:"index"`
	Name        string          `json:"name"`
	OrdinanceNo *string         `json:"ordinance_no"`
	Fine        decimal.Decimal `json:"fine"`
	FineDisplay string          `json:"fine_display"`
}

// PrintView is the receipt payload for a ticket.
type PrintView struct {
	CitationNo            string          `json:"citation_no"`
	Status                Status          `json:"status"`
	DateTime              string          `json:"date_time"`
	Place                 *string         `json:"place"`
	Violator              PrintViolator   `json:"violator"`
	Enforcer              PrintEnforcer   `json:"enforcer"`
	Violations            []PrintLine     `json:"violations"`
	AdditionalFees        decimal.Decimal `json:"additional_fees"`
	AdditionalFeesDisplay string          `json:"additional_fees_display"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TotalDisplay          string          `json:"total_display"`
	ComplianceDate        *string         `json:"compliance_date"`
	LatestPayment         *PaymentSummary `json:"latest_payment"`
}
