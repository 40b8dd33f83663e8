// Package metrics records build metrics on a private Prometheus registry and
// writes them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeLeaked  = "leaked"
)

// Recorder holds the build metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	documents     *prometheus.GaugeVec
	synthesized   *prometheus.GaugeVec
	findings      *prometheus.CounterVec
	brokenLinks   *prometheus.GaugeVec
	buildDuration *prometheus.HistogramVec
	builds        *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
}

// New creates a Recorder registering its collectors on registry. A nil
// registry gets a fresh one.
func New(namespace string, registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "gardensite"
	}

	r := &Recorder{
		registry: registry,
		documents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Documents per target by inclusion decision in the last build.",
		}, []string{"target", "audience", "decision"}),
		synthesized: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "section_indexes_synthesized",
			Help:      "Placeholder section indexes written in the last build.",
		}, []string{"target"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_findings_total",
			Help:      "Leak audit findings by kind.",
		}, []string{"target", "kind"}),
		brokenLinks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broken_links",
			Help:      "Broken internal links found in the last build.",
		}, []string{"target"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a target build.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"target"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Target builds by outcome.",
		}, []string{"target", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful target build.",
		}, []string{"target"}),
	}

	registry.MustRegister(r.documents, r.synthesized, r.findings, r.brokenLinks,
		r.buildDuration, r.builds, r.lastSuccess)
	return r
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Filter records the inclusion counts of a copier run.
func (r *Recorder) Filter(target, audience string, included, excluded, synthesized int) {
	if r == nil {
		return
	}
	r.documents.WithLabelValues(target, audience, "included").Set(float64(included))
	r.documents.WithLabelValues(target, audience, "excluded").Set(float64(excluded))
	r.synthesized.WithLabelValues(target).Set(float64(synthesized))
}

// Findings adds n audit findings of kind.
func (r *Recorder) Findings(target, kind string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.findings.WithLabelValues(target, kind).Add(float64(n))
}

// BrokenLinks records the broken link count of the last check.
func (r *Recorder) BrokenLinks(target string, n int) {
	if r == nil {
		return
	}
	r.brokenLinks.WithLabelValues(target).Set(float64(n))
}

// Build records a finished target build.
func (r *Recorder) Build(target, outcome string, d time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.buildDuration.WithLabelValues(target).Observe(d.Seconds())
	r.builds.WithLabelValues(target, outcome).Inc()
	if outcome == OutcomeSuccess {
		r.lastSuccess.WithLabelValues(target).Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}
