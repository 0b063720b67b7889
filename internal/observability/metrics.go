package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the service's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	depositsTotal     prometheus.Counter
	depositedUnits    prometheus.Counter
	withdrawalsTotal  prometheus.Counter
	withdrawnUnits    prometheus.Counter
	rejectionsTotal   *prometheus.CounterVec
	conservationDrift prometheus.Gauge
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "custodia_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "custodia_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	deposits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custodia_vault_deposits_total",
		Help: "Successful deposits.",
	})
	depositedUnits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custodia_vault_deposited_units_total",
		Help: "Value units deposited.",
	})
	withdrawals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custodia_vault_withdrawals_total",
		Help: "Successful withdrawals.",
	})
	withdrawnUnits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custodia_vault_withdrawn_units_total",
		Help: "Value units withdrawn.",
	})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "custodia_vault_rejections_total",
		Help: "Rejected vault operations by reason.",
	}, []string{"reason"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "custodia_vault_conservation_drift",
		Help: "Difference between stored balance and ledger entry sum.",
	})
	registry.MustRegister(requests, duration, deposits, depositedUnits, withdrawals, withdrawnUnits, rejections, drift)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		depositsTotal:     deposits,
		depositedUnits:    depositedUnits,
		withdrawalsTotal:  withdrawals,
		withdrawnUnits:    withdrawnUnits,
		rejectionsTotal:   rejections,
		conservationDrift: drift,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RecordDeposit counts a successful deposit of amount units.
func (m *Metrics) RecordDeposit(amount int64) {
	if m == nil {
		return
	}
	m.depositsTotal.Inc()
	m.depositedUnits.Add(float64(amount))
}

// RecordWithdrawal counts a successful withdrawal of amount units.
func (m *Metrics) RecordWithdrawal(amount int64) {
	if m == nil {
		return
	}
	m.withdrawalsTotal.Inc()
	m.withdrawnUnits.Add(float64(amount))
}

// RecordRejection counts a rejected operation.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

// SetConservationDrift publishes the latest conservation check result.
func (m *Metrics) SetConservationDrift(drift int64) {
	if m == nil {
		return
	}
	m.conservationDrift.Set(float64(drift))
}

// Middleware records request metrics for every HTTP request.
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

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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
