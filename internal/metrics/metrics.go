// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the services.
type Recorder interface {
	RecordTap(action string)
	RecordFailure(operation, code string)
	RecordBoarding()
	RecordTxRetry(operation string)
	RecordReportDegraded(report string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	taps            *prometheus.CounterVec
	failures        *prometheus.CounterVec
	boardings       prometheus.Counter
	txRetries       *prometheus.CounterVec
	reportsDegraded *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		taps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_taps_total",
			Help: "RFID taps that changed a work session, by action",
		}, []string{"action"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_operation_failures_total",
			Help: "Failed core operations, by operation and error code",
		}, []string{"operation", "code"}),
		boardings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_boardings_total",
			Help: "Recorded passenger boardings",
		}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_tx_retries_total",
			Help: "Transactions retried after a transient store error",
		}, []string{"operation"}),
		reportsDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_reports_degraded_total",
			Help: "Reports served zero-filled after a transient read failure",
		}, []string{"report"}),
	}

	reg.MustRegister(
		c.taps,
		c.failures,
		c.boardings,
		c.txRetries,
		c.reportsDegraded,
	)

	return c
}

// RecordTap counts a successful tap.
func (c *Collector) RecordTap(action string) {
	c.taps.WithLabelValues(action).Inc()
}

// RecordFailure counts a failed operation.
func (c *Collector) RecordFailure(operation, code string) {
	c.failures.WithLabelValues(operation, code).Inc()
}

// RecordBoarding counts a boarding.
func (c *Collector) RecordBoarding() {
	c.boardings.Inc()
}

// RecordTxRetry counts a retried transaction.
func (c *Collector) RecordTxRetry(operation string) {
	c.txRetries.WithLabelValues(operation).Inc()
}

// RecordReportDegraded counts a degraded report.
func (c *Collector) RecordReportDegraded(report string) {
	c.reportsDegraded.WithLabelValues(report).Inc()
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) RecordTap(string) {}
func (Nop) RecordFailure(string, string) {}
func (Nop) RecordBoarding() {}
func (Nop) RecordTxRetry(string) {}
func (Nop) RecordReportDegraded(string) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
