package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Range bounds a report. Both ends must be present for the range to apply.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Bounded reports whether the range filters anything.
func (r Range) Bounded() bool {
	return r.From != nil && r.To != nil
}

// ParseRange reads YYYY-MM-DD dates in loc. Invalid dates are ignored; a valid
// end date covers that whole day.
func ParseRange(from, to string, loc *time.Location) Range {
	var r Range
	if t, err := time.ParseInLocation("2006-01-02", from, loc); err == nil {
		r.From = &t
	}
	if t, err := time.ParseInLocation("2006-01-02", to, loc); err == nil {
		end := t.AddDate(0, 0, 1)
		r.To = &end
	}
	return r
}

func (r Range) key() string {
	if !r.Bounded() {
		return "all"
	}
	return r.From.Format("20060102") + "-" + r.To.Format("20060102")
}

// Summary aggregates tickets by apprehension time and collections by payment time.
type Summary struct {
	TotalTickets     int             `json:"total_tickets"`
	OpenTickets      int             `json:"open_tickets"`
	PaidTickets      int             `json:"paid_tickets"`
	TotalCollections decimal.Decimal `json:"total_collections"`
	TodayCollections decimal.Decimal `json:"today_collections"`
}

// ViolationCollections groups recorded payments by the ticket's primary violation.
type ViolationCollections struct {
	ViolationName string          `json:"violation_name"`
	Count         int             `json:"count"`
	Amount        decimal.Decimal `json:"amount"`
}

// DailyCollections is one day of the collections trend.
type DailyCollections struct {
	Date    string          `json:"date"`
	Tickets int             `json:"tickets"`
	Amount  decimal.Decimal `json:"amount"`
}

// Overview is the admin dashboard report.
type Overview struct {
	Summary     Summary                `json:"summary"`
	ByViolation []ViolationCollections `json:"by_violation"`
	Daily       []DailyCollections     `json:"daily"`
}

// AdminStats is the admin landing counters.
type AdminStats struct {
	TotalCitationsToday int `json:"total_citations_today"`
	TotalEnforcers      int `json:"total_enforcers"`
}
