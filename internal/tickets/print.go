package tickets

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount for display, e.g. "PHP 1,250.00".
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	whole, cents, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = moneyPrinter.Sprintf("%d", n)
	}
	return "PHP " + sign + whole + "." + cents
}

// PrintView assembles the printable citation for a ticket.
func (s *Service) PrintView(ctx context.Context, id int64) (*PrintView, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &PrintView{
		CitationNo:            t.ControlNo,
		Status:                t.Status,
		DateTime:              t.ApprehendedAt.In(s.loc).Format("2006-01-02 15:04"),
		Place:                 t.PlaceOfApprehension,
		AdditionalFees:        t.AdditionalFees,
		AdditionalFeesDisplay: FormatMoney(t.AdditionalFees),
		TotalAmount:           t.TotalAmount,
		TotalDisplay:          FormatMoney(t.TotalAmount),
		LatestPayment:         latest,
		Violations:            make([]PrintLine, 0, len(t.Violations)),
	}
	if t.ComplianceDate != nil {
		d := t.ComplianceDate.Format("2006-01-02")
		view.ComplianceDate = &d
	}
	if t.Violator != nil {
		view.Violator = PrintViolator{
			Name:           t.Violator.Name,
			Address:        t.Violator.Address,
			DriversLicense: t.Violator.DriversLicense,
			PlateNo:        t.Violator.PlateNo,
			KDNo:           t.Violator.KDNo,
		}
	}
	if t.Enforcer != nil {
		view.Enforcer = PrintEnforcer{Name: t.Enforcer.FullName, EnforcerNo: t.Enforcer.EnforcerNo}
	}
	for i, line := range t.Violations {
		view.Violations = append(view.Violations, PrintLine{
			Index:       i + 1,
			Name:        line.Name,
			OrdinanceNo: line.OrdinanceNo,
			Fine:        line.FineAmount,
			FineDisplay: FormatMoney(line.FineAmount),
		})
	}
	return view, nil
}
