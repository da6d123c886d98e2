// Package metrics holds the Prometheus collectors for HTTP traffic and the
// billing, ward and claims ledgers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	billsCreated   *prometheus.CounterVec
	billedAmount   *prometheus.CounterVec
	paymentsTotal  *prometheus.CounterVec
	paymentAmount  prometheus.Counter
	admissions     *prometheus.CounterVec
	occupiedBeds   *prometheus.GaugeVec
	claimDecisions *prometheus.CounterVec
	storeConflicts prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hms_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		billsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hms_bills_created_total",
				Help: "Bills posted to the ledger, by charge source",
			},
			[]string{"source"},
		),
		billedAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hms_billed_amount_total",
				Help: "Sum of bill totals posted, by charge source",
			},
			[]string{"source"},
		),
		paymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hms_payments_total",
				Help: "Payments recorded against bills, by method",
			},
			[]string{"method"},
		),
		paymentAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hms_payment_amount_total",
			Help: "Sum of payments recorded against bills",
		}),
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hms_ward_events_total",
				Help: "Ward admissions and discharges",
			},
			[]string{"event", "room_type"},
		),
		occupiedBeds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hms_ward_occupied_beds",
				Help: "Occupied beds per room after the last ward change",
			},
			[]string{"room_id", "room_type"},
		),
		claimDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hms_claim_transitions_total",
				Help: "TPA claim status transitions",
			},
			[]string{"status"},
		),
		storeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hms_store_version_conflicts_total",
			Help: "Writes rejected by the record store version check",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.billsCreated, m.billedAmount,
		m.paymentsTotal, m.paymentAmount, m.admissions, m.occupiedBeds,
		m.claimDecisions, m.storeConflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) BillCreated(source string, amount float64) {
	if m == nil {
		return
	}
	m.billsCreated.WithLabelValues(source).Inc()
	m.billedAmount.WithLabelValues(source).Add(amount)
}

func (m *Metrics) PaymentRecorded(method string, amount float64) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unspecified"
	}
	m.paymentsTotal.WithLabelValues(method).Inc()
	if amount > 0 {
		m.paymentAmount.Add(amount)
	}
}

// WardEvent records an admission or discharge and the room's new occupancy.
func (m *Metrics) WardEvent(event, roomID, roomType string, occupied int) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(event, roomType).Inc()
	m.occupiedBeds.WithLabelValues(roomID, roomType).Set(float64(occupied))
}

func (m *Metrics) ClaimTransition(status string) {
	if m == nil {
		return
	}
	m.claimDecisions.WithLabelValues(status).Inc()
}

func (m *Metrics) StoreConflict() {
	if m == nil {
		return
	}
	m.storeConflicts.Inc()
}
