package violations

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mtvts/mtvts/internal/shared"
)

// ListRequest filters the catalog listing.
type ListRequest struct {
	Type  string
	Query string
}

func (r ListRequest) normalized() ListRequest {
	return ListRequest{Type: strings.TrimSpace(r.Type), Query: strings.TrimSpace(r.Query)}
}

func (r ListRequest) cacheSuffix() string {
	return "list:" + strings.ToLower(r.Type) + ":" + strings.ToLower(r.Query)
}

// UpsertRequest is the admin payload for creating or replacing a catalog entry.
type UpsertRequest struct {
	Type        string          `json:"type" validate:"required,max=255"`
	Name        string          `json:"name" validate:"required,max=255"`
	Fine        decimal.Decimal `json:"fine"`
	OrdinanceNo *string         `json:"ordinance_no" validate:"omitempty,max=255"`
}

// Validate trims the payload and checks field rules.
func (r *UpsertRequest) Validate() error {
	r.Type = strings.TrimSpace(r.Type)
	r.Name = strings.TrimSpace(r.Name)
	if r.OrdinanceNo != nil {
		trimmed := strings.TrimSpace(*r.OrdinanceNo)
		if trimmed == "" {
			r.OrdinanceNo = nil
		} else {
			r.OrdinanceNo = &trimmed
		}
	}
	var verr *shared.ValidationError
	if err := shared.ValidateStruct(r); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if r.Fine.IsNegative() {
		verr = verr.Merge(shared.NewValidationError("fine", "must be at least 0"))
	}
	if msg := shared.AmountProblem(r.Fine); msg != "" {
		verr = verr.Merge(shared.NewValidationError("fine", msg))
	}
	if verr != nil {
		return verr
	}
	return nil
}
