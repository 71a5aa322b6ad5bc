package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the HTTP surface and the ticketing domain.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ticketsIssued     prometheus.Counter
	paymentsRecorded  *prometheus.CounterVec
	paymentsVoided    prometheus.Counter
	overpayments      prometheus.Counter
	conflicts         *prometheus.CounterVec
	settlementSeconds prometheus.Histogram
}

// NewMetrics initialises the registry and all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtvts_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mtvts_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	issued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mtvts_tickets_issued_total",
		Help: "Tickets committed by issuance.",
	})
	recorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtvts_payments_recorded_total",
		Help: "Payments recorded, labelled by the resulting ticket status.",
	}, []string{"ticket_status"})
	voided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mtvts_payments_voided_total",
		Help: "Payments reversed.",
	})
	overpay := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mtvts_overpayments_rejected_total",
		Help: "Payments rejected because they exceed the outstanding balance.",
	})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtvts_conflicts_total",
		Help: "Retryable conflicts (lock timeouts, uniqueness collisions) by operation.",
	}, []string{"operation"})
	settlement := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mtvts_settlement_duration_seconds",
		Help:    "Time spent holding the ticket lock during settlement.",
		Buckets: prometheus.DefBuckets,
	})
	registry.MustRegister(
		requests, duration, issued, recorded, voided, overpay, conflicts, settlement,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		ticketsIssued:     issued,
		paymentsRecorded:  recorded,
		paymentsVoided:    voided,
		overpayments:      overpay,
		conflicts:         conflicts,
		settlementSeconds: settlement,
	}
}

// Handler returns the http.Handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// TicketIssued counts a committed ticket.
func (m *Metrics) TicketIssued() {
	if m == nil {
		return
	}
	m.ticketsIssued.Inc()
}

// PaymentRecorded counts a committed payment and how long the ticket lock was held.
func (m *Metrics) PaymentRecorded(ticketStatus string, held time.Duration) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(ticketStatus).Inc()
	m.settlementSeconds.Observe(held.Seconds())
}

// PaymentVoided counts a reversal.
func (m *Metrics) PaymentVoided() {
	if m == nil {
		return
	}
	m.paymentsVoided.Inc()
}

// OverpaymentRejected counts a rejected settlement.
func (m *Metrics) OverpaymentRejected() {
	if m == nil {
		return
	}
	m.overpayments.Inc()
}

// Conflict counts a retryable conflict hit by operation.
func (m *Metrics) Conflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
