package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "tipopdf"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	unitOutcome   *prom.CounterVec
	unitDuration  *prom.HistogramVec
	pages         prom.Counter
	normalization *prom.CounterVec
	batchErrors   prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them on reg,
// or on a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		unitOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "unit_outcomes_total",
			Help:      "Document units by terminal state",
		}, []string{"state"}),
		unitDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Time spent building, stamping and publishing one unit",
			Buckets:   prom.ExponentialBuckets(0.1, 2, 12),
		}, []string{"state"}),
		pages: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pages_assembled_total",
			Help:      "Pages embedded into published documents",
		}),
		normalization: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "page_normalizations_total",
			Help:      "Page normalization results by action",
		}, []string{"action"}),
		batchErrors: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "batch_errors_total",
			Help:      "Diagnostics appended to the batch error list",
		}),
	}
	reg.MustRegister(pr.unitOutcome, pr.unitDuration, pr.pages, pr.normalization, pr.batchErrors)
	return pr
}

func (p *PrometheusRecorder) IncUnitOutcome(state string) {
	p.unitOutcome.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) ObserveUnitDuration(state string, d time.Duration) {
	p.unitDuration.WithLabelValues(state).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddPages(n int) {
	p.pages.Add(float64(n))
}

func (p *PrometheusRecorder) IncNormalization(action string, n int) {
	p.normalization.WithLabelValues(action).Add(float64(n))
}

func (p *PrometheusRecorder) IncBatchErrors() {
	p.batchErrors.Inc()
}

// WriteTextfile writes the registry in the text exposition format, for
// pickup by a node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
