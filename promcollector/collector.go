// Package promcollector exports cache metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc := promcollector.New(reg, promcollector.WithNamespace("smc"))
//	cache, err := lineage.New(width, lineage.WithMetricsCollector(mc))
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/lineage"
)

type options struct {
	namespace   string
	constLabels prometheus.Labels
}

// Option configures New.
type Option func(*options)

// WithNamespace sets the metric namespace. Default: "lineage".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithConstLabels attaches labels to every metric, e.g. a run identifier.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.constLabels = labels
	}
}

// Collector implements lineage.MetricsCollector with Prometheus metrics.
type Collector struct {
	writes          prometheus.Counter
	writeParticles  prometheus.Counter
	writeDuration   prometheus.Histogram
	prunes          prometheus.Counter
	pruneDuration   prometheus.Histogram
	occupied        prometheus.Gauge
	slots           prometheus.Gauge
	grows           *prometheus.CounterVec
	exports         *prometheus.CounterVec
	exportDuration  prometheus.Histogram
	snapshots       *prometheus.CounterVec
	snapshotBytes   prometheus.Counter
	snapshotLatency prometheus.Histogram
}

var _ lineage.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg.
// It panics if registration fails, as promauto does.
func New(reg prometheus.Registerer, optFns ...Option) *Collector {
	opts := options{namespace: "lineage"}
	for _, fn := range optFns {
		fn(&opts)
	}

	f := promauto.With(reg)
	ns, cl := opts.namespace, opts.constLabels

	return &Collector{
		writes: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "writes_total", ConstLabels: cl,
			Help: "Total time steps written",
		}),
		writeParticles: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "write_particles_total", ConstLabels: cl,
			Help: "Total particle states written",
		}),
		writeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "write_duration_seconds", ConstLabels: cl,
			Help:    "WriteState duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~330ms
		}),
		prunes: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "prunes_total", ConstLabels: cl,
			Help: "Total liveness sweeps",
		}),
		pruneDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "prune_duration_seconds", ConstLabels: cl,
			Help:    "Liveness sweep duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		occupied: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "occupied_slots", ConstLabels: cl,
			Help: "Live slots after the last sweep",
		}),
		slots: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "slots", ConstLabels: cl,
			Help: "Total slots",
		}),
		grows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "grows_total", ConstLabels: cl,
			Help: "Slot storage growth attempts by result",
		}, []string{"result"}),
		exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "exported_trajectories_total", ConstLabels: cl,
			Help: "Trajectories requested for export by result",
		}, []string{"result"}),
		exportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "export_duration_seconds", ConstLabels: cl,
			Help:    "Trajectory export duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "snapshots_total", ConstLabels: cl,
			Help: "Snapshots written by result",
		}, []string{"result"}),
		snapshotBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "snapshot_bytes_total", ConstLabels: cl,
			Help: "Bytes written by successful snapshots",
		}),
		snapshotLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "snapshot_duration_seconds", ConstLabels: cl,
			Help:    "Snapshot duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordWrite implements lineage.MetricsCollector.
func (c *Collector) RecordWrite(particles int, duration time.Duration) {
	c.writes.Inc()
	c.writeParticles.Add(float64(particles))
	c.writeDuration.Observe(duration.Seconds())
}

// RecordPrune implements lineage.MetricsCollector.
func (c *Collector) RecordPrune(occupied, slots int, duration time.Duration) {
	c.prunes.Inc()
	c.pruneDuration.Observe(duration.Seconds())
	c.occupied.Set(float64(occupied))
	c.slots.Set(float64(slots))
}

// RecordGrow implements lineage.MetricsCollector.
func (c *Collector) RecordGrow(_, newSlots int, err error) {
	c.grows.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.slots.Set(float64(newSlots))
	}
}

// RecordExport implements lineage.MetricsCollector.
func (c *Collector) RecordExport(count int, duration time.Duration, err error) {
	c.exports.WithLabelValues(result(err)).Add(float64(count))
	c.exportDuration.Observe(duration.Seconds())
}

// RecordSnapshot implements lineage.MetricsCollector.
func (c *Collector) RecordSnapshot(bytes int64, duration time.Duration, err error) {
	c.snapshots.WithLabelValues(result(err)).Inc()
	c.snapshotLatency.Observe(duration.Seconds())
	if err == nil {
		c.snapshotBytes.Add(float64(bytes))
	}
}
