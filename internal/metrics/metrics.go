// Package metrics defines the Prometheus collectors of the audit pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the per-job, per-document and per-record collectors. A nil
// *Pipeline is valid and records nothing.
type Pipeline struct {
	jobs        *prometheus.CounterVec
	jobDuration prometheus.Histogram
	documents   *prometheus.CounterVec
	ocrDuration prometheus.Histogram
	records     *prometheus.CounterVec
	inflight    prometheus.Gauge
}

// NewPipeline creates the collectors and registers them on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bill_audit_jobs_total",
			Help: "Audit jobs finished, by final status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bill_audit_job_duration_seconds",
			Help:    "Wall time of audit jobs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bill_audit_documents_total",
			Help: "Bill documents processed by OCR, by outcome.",
		}, []string{"outcome"}),
		ocrDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bill_audit_ocr_duration_seconds",
			Help:    "OCR time per bill file.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bill_audit_records_total",
			Help: "Ledger records classified, by match status.",
		}, []string{"status"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bill_audit_jobs_inflight",
			Help: "Audit jobs currently running.",
		}),
	}
	for _, c := range []prometheus.Collector{p.jobs, p.jobDuration, p.documents, p.ocrDuration, p.records, p.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// JobStarted marks a job as running and returns the func that records its end.
func (p *Pipeline) JobStarted() func(status string) {
	if p == nil {
		return func(string) {}
	}
	start := time.Now()
	p.inflight.Inc()
	return func(status string) {
		p.inflight.Dec()
		p.jobs.WithLabelValues(status).Inc()
		p.jobDuration.Observe(time.Since(start).Seconds())
	}
}

// Document records one OCR'd file.
func (p *Pipeline) Document(outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.documents.WithLabelValues(outcome).Inc()
	p.ocrDuration.Observe(d.Seconds())
}

// Record counts one classified ledger record.
func (p *Pipeline) Record(status string) {
	if p == nil {
		return
	}
	p.records.WithLabelValues(status).Inc()
}
