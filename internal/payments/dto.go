package payments

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/shared"
)

// RecordRequest is the cashier's payment payload. Either TicketID or ControlNo
// identifies the ticket.
type RecordRequest struct {
	TicketID  int64           `json:"ticket_id" validate:"gte=0"`
	ControlNo string          `json:"control_no" validate:"omitempty,max=32"`
	Amount    decimal.Decimal `json:"amount"`
	ReceiptNo string          `json:"receipt_no" validate:"required,max=255"`
	Remarks   *string         `json:"remarks" validate:"omitempty,max=255"`
}

// Validate trims and checks the payload.
func (r *RecordRequest) Validate() error {
	r.ControlNo = strings.TrimSpace(r.ControlNo)
	r.ReceiptNo = strings.TrimSpace(r.ReceiptNo)
	if r.Remarks != nil {
		trimmed := strings.TrimSpace(*r.Remarks)
		if trimmed == "" {
			r.Remarks = nil
		} else {
			r.Remarks = &trimmed
		}
	}

	var verr *shared.ValidationError
	if err := shared.ValidateStruct(r); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if r.TicketID == 0 && r.ControlNo == "" {
		verr = verr.Merge(shared.NewValidationError("ticket_id", "is required"))
	}
	if !r.Amount.IsPositive() {
		verr = verr.Merge(shared.NewValidationError("amount", "must be greater than 0"))
	} else if msg := shared.AmountProblem(r.Amount); msg != "" {
		verr = verr.Merge(shared.NewValidationError("amount", msg))
	}
	if verr != nil {
		return verr
	}
	return nil
}

// VoidRequest reverses a recorded payment.
type VoidRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// ListRequest filters the admin payment journal.
type ListRequest struct {
	Status Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

func (r ListRequest) normalized() ListRequest {
	if r.Limit <= 0 || r.Limit > 200 {
		r.Limit = 50
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.Status != "" && r.Status != StatusRecorded && r.Status != StatusReversed {
		r.Status = ""
	}
	return r
}

// ListResponse is a page of the admin journal.
type ListResponse struct {
	Data       []JournalEntry    `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}
