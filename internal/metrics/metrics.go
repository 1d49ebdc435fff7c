// Package metrics records editor and propagation activity as Prometheus
// metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/magsav/pkg/editor"
	"github.com/mesh-intelligence/magsav/pkg/propagation"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

const namespace = "magsav"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	_ editor.Observer      = (*Recorder)(nil)
	_ propagation.Observer = (*Recorder)(nil)
)

// Recorder implements editor.Observer and propagation.Observer.
type Recorder struct {
	registry      *prometheus.Registry
	commits       *prometheus.CounterVec
	propagations  *prometheus.CounterVec
	updates       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Edit commits persisted in the background, by outcome.",
		}, []string{"kind", "status"}),
		propagations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagations_total",
			Help:      "Bulk propagation requests, by outcome.",
		}, []string{"kind", "outcome"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_updates_total",
			Help:      "Per-record updates issued by propagation.",
		}, []string{"kind", "status"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Shared artifact cache invalidations.",
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "propagation_duration_seconds",
			Help:      "Wall time of a propagation request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.commits, r.propagations, r.updates, r.invalidations, r.duration)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// CommitPersisted implements editor.Observer.
func (r *Recorder) CommitPersisted(kind types.Kind, err error) {
	r.commits.WithLabelValues(string(kind), status(err)).Inc()
}

// RecordUpdated implements propagation.Observer.
func (r *Recorder) RecordUpdated(kind types.Kind, err error) {
	r.updates.WithLabelValues(string(kind), status(err)).Inc()
}

// CacheInvalidated implements propagation.Observer.
func (r *Recorder) CacheInvalidated(kind types.Kind, err error) {
	r.invalidations.WithLabelValues(string(kind), status(err)).Inc()
}

// BatchFinished implements propagation.Observer.
func (r *Recorder) BatchFinished(result types.BulkUpdateResult, elapsed time.Duration) {
	kind := string(result.Kind)
	r.propagations.WithLabelValues(kind, string(result.Outcome)).Inc()
	r.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// WriteTextfile writes the current values in the text exposition format, for
// the node exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
