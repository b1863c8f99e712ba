package logship

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsExporter exposes pipeline metrics as a Prometheus collector.
// Register the Observe method using RegisterMetricsHandler (or wire it as a
// Config.MetricsReporter) to begin collecting data.
type MetricsExporter struct {
	mu   sync.RWMutex
	last Metrics

	enqueued     *prometheus.Desc
	delivered    *prometheus.Desc
	dropped      *prometheus.Desc
	requeued     *prometheus.Desc
	retries      *prometheus.Desc
	sendErrors   *prometheus.Desc
	breakerOpens *prometheus.Desc
	queueDepth   *prometheus.Desc
	queueBytes   *prometheus.Desc
}

// NewMetricsExporter creates a new exporter instance.
func NewMetricsExporter() *MetricsExporter {
	return &MetricsExporter{
		enqueued: prometheus.NewDesc("logship_enqueued_total",
			"Total records admitted to the buffer", nil, nil),
		delivered: prometheus.NewDesc("logship_delivered_total",
			"Total records acknowledged by the backend", nil, nil),
		dropped: prometheus.NewDesc("logship_dropped_total",
			"Total records discarded without delivery", nil, nil),
		requeued: prometheus.NewDesc("logship_requeued_total",
			"Total records re-admitted after a failed delivery cycle", nil, nil),
		retries: prometheus.NewDesc("logship_retries_total",
			"Total delivery retry attempts", nil, nil),
		sendErrors: prometheus.NewDesc("logship_send_errors_total",
			"Total failed transport sends", nil, nil),
		breakerOpens: prometheus.NewDesc("logship_breaker_opens_total",
			"Total circuit breaker trips", nil, nil),
		queueDepth: prometheus.NewDesc("logship_queue_depth",
			"Current number of buffered records", nil, nil),
		queueBytes: prometheus.NewDesc("logship_queue_bytes",
			"Current estimated byte total of buffered records", nil, nil),
	}
}

// Observe records the latest metrics snapshot. It satisfies MetricsHandler so
// it can be registered with RegisterMetricsHandler.
func (e *MetricsExporter) Observe(_ context.Context, metrics Metrics) {
	e.mu.Lock()
	e.last = metrics
	e.mu.Unlock()
}

// Report records the latest metrics snapshot. It satisfies the
// Config.MetricsReporter signature.
func (e *MetricsExporter) Report(metrics Metrics) {
	e.Observe(context.Background(), metrics)
}

// Describe implements prometheus.Collector.
func (e *MetricsExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.enqueued
	ch <- e.delivered
	ch <- e.dropped
	ch <- e.requeued
	ch <- e.retries
	ch <- e.sendErrors
	ch <- e.breakerOpens
	ch <- e.queueDepth
	ch <- e.queueBytes
}

// Collect implements prometheus.Collector.
func (e *MetricsExporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.RLock()
	last := e.last
	e.mu.RUnlock()

	ch <- prometheus.MustNewConstMetric(e.enqueued, prometheus.CounterValue, float64(last.Enqueued))
	ch <- prometheus.MustNewConstMetric(e.delivered, prometheus.CounterValue, float64(last.Delivered))
	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(last.Dropped))
	ch <- prometheus.MustNewConstMetric(e.requeued, prometheus.CounterValue, float64(last.Requeued))
	ch <- prometheus.MustNewConstMetric(e.retries, prometheus.CounterValue, float64(last.Retries))
	ch <- prometheus.MustNewConstMetric(e.sendErrors, prometheus.CounterValue, float64(last.SendErrors))
	ch <- prometheus.MustNewConstMetric(e.breakerOpens, prometheus.CounterValue, float64(last.BreakerOpens))
	ch <- prometheus.MustNewConstMetric(e.queueDepth, prometheus.GaugeValue, float64(last.QueueDepth))
	ch <- prometheus.MustNewConstMetric(e.queueBytes, prometheus.GaugeValue, float64(last.QueueBytes))
}

// Handler returns an HTTP handler serving the exporter's metrics in
// Prometheus exposition format.
func (e *MetricsExporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

var _ prometheus.Collector = (*MetricsExporter)(nil)
