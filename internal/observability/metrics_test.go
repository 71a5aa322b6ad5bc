package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/tickets/{id}")

	req := httptest.NewRequest(http.MethodGet, "/api/tickets/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `mtvts_http_requests_total{code="418",route="/api/tickets/{id}"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `mtvts_http_request_duration_seconds_bucket{route="/api/tickets/{id}"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.TicketIssued()
	metrics.PaymentRecorded("paid", 20*time.Millisecond)
	metrics.OverpaymentRejected()
	metrics.Conflict("issue_ticket")

	body := scrape(t, metrics)
	for _, want := range []string{
		"mtvts_tickets_issued_total 1",
		`mtvts_payments_recorded_total{ticket_status="paid"} 1`,
		"mtvts_overpayments_rejected_total 1",
		`mtvts_conflicts_total{operation="issue_ticket"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}

	var nilMetrics *Metrics
	nilMetrics.TicketIssued()
	nilMetrics.PaymentVoided()
}
