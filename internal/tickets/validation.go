package tickets

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mtvts/mtvts/internal/shared"
)

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// normalize trims text fields so blank optionals are stored as NULL.
func (r *IssueRequest) normalize() {
	r.ViolatorName = strings.TrimSpace(r.ViolatorName)
	r.DriversLicense = strings.TrimSpace(r.DriversLicense)
	r.Address = trimOptional(r.Address)
	r.PlateNo = trimOptional(r.PlateNo)
	r.Sex = trimOptional(r.Sex)
	r.KDNo = trimOptional(r.KDNo)
	r.PlaceOfApprehension = trimOptional(r.PlaceOfApprehension)
	r.ComplianceDate = trimOptional(r.ComplianceDate)
	for i := range r.Violations {
		r.Violations[i].Remarks = trimOptional(r.Violations[i].Remarks)
	}
}

// Validate checks the request before anything is written.
func (r *IssueRequest) Validate() error {
	r.normalize()

	var verr *shared.ValidationError
	if err := shared.ValidateStruct(r); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}

	seen := make(map[int64]int, len(r.Violations))
	for i, v := range r.Violations {
		if v.ViolationID <= 0 {
			continue
		}
		if first, dup := seen[v.ViolationID]; dup {
			verr = verr.Merge(shared.NewValidationError(
				"violations["+strconv.Itoa(i)+"].violation_id",
				"duplicates violations["+strconv.Itoa(first)+"]",
			))
			continue
		}
		seen[v.ViolationID] = i
	}

	if r.AdditionalFees != nil {
		if r.AdditionalFees.IsNegative() {
			verr = verr.Merge(shared.NewValidationError("additional_fees", "must be at least 0"))
		} else if msg := shared.AmountProblem(*r.AdditionalFees); msg != "" {
			verr = verr.Merge(shared.NewValidationError("additional_fees", msg))
		}
	}

	if verr != nil {
		return verr
	}
	return nil
}

// ViolationIDs returns the requested catalog ids in request order.
func (r *IssueRequest) ViolationIDs() []int64 {
	ids := make([]int64, len(r.Violations))
	for i, v := range r.Violations {
		ids[i] = v.ViolationID
	}
	return ids
}

func (r *IssueRequest) complianceDate(loc *time.Location) *time.Time {
	if r.ComplianceDate == nil {
		return nil
	}
	d, err := time.ParseInLocation("2006-01-02", *r.ComplianceDate, loc)
	if err != nil {
		return nil
	}
	return &d
}
