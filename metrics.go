package lineage

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// see package promcollector for a ready-made implementation.
type MetricsCollector interface {
	// RecordWrite is called after each WriteState.
	// particles is the batch size, duration the time taken.
	RecordWrite(particles int, duration time.Duration)

	// RecordPrune is called after each reachability sweep.
	// occupied is the number of slots found reachable out of slots.
	RecordPrune(occupied, slots int, duration time.Duration)

	// RecordGrow is called after each attempt to grow slot storage.
	// err is nil if successful.
	RecordGrow(oldSlots, newSlots int, err error)

	// RecordExport is called after each ExportTrajectories call.
	// count is the number of trajectories requested.
	RecordExport(count int, duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot write.
	RecordSnapshot(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordWrite(int, time.Duration)             {}
func (NoopMetricsCollector) RecordPrune(int, int, time.Duration)        {}
func (NoopMetricsCollector) RecordGrow(int, int, error)                 {}
func (NoopMetricsCollector) RecordExport(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordSnapshot(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	WriteCount       atomic.Int64
	WriteParticles   atomic.Int64
	WriteTotalNanos  atomic.Int64
	PruneCount       atomic.Int64
	PruneTotalNanos  atomic.Int64
	LastOccupied     atomic.Int64
	GrowCount        atomic.Int64
	GrowErrors       atomic.Int64
	Slots            atomic.Int64
	ExportCount      atomic.Int64
	ExportItems      atomic.Int64
	ExportErrors     atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotBytes    atomic.Int64
	SnapshotErrors   atomic.Int64
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(particles int, duration time.Duration) {
	b.WriteCount.Add(1)
	b.WriteParticles.Add(int64(particles))
	b.WriteTotalNanos.Add(duration.Nanoseconds())
}

// RecordPrune implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrune(occupied, slots int, duration time.Duration) {
	b.PruneCount.Add(1)
	b.PruneTotalNanos.Add(duration.Nanoseconds())
	b.LastOccupied.Store(int64(occupied))
	b.Slots.Store(int64(slots))
}

// RecordGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrow(oldSlots, newSlots int, err error) {
	b.GrowCount.Add(1)
	if err != nil {
		b.GrowErrors.Add(1)
		return
	}
	b.Slots.Store(int64(newSlots))
}

// RecordExport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExport(count int, duration time.Duration, err error) {
	b.ExportCount.Add(1)
	b.ExportItems.Add(int64(count))
	if err != nil {
		b.ExportErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(bytes int64, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	b.SnapshotBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		WriteCount:     b.WriteCount.Load(),
		WriteParticles: b.WriteParticles.Load(),
		WriteAvgNanos:  avgNanos(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		PruneCount:     b.PruneCount.Load(),
		PruneAvgNanos:  avgNanos(b.PruneTotalNanos.Load(), b.PruneCount.Load()),
		LastOccupied:   b.LastOccupied.Load(),
		GrowCount:      b.GrowCount.Load(),
		GrowErrors:     b.GrowErrors.Load(),
		Slots:          b.Slots.Load(),
		ExportCount:    b.ExportCount.Load(),
		ExportItems:    b.ExportItems.Load(),
		ExportErrors:   b.ExportErrors.Load(),
		SnapshotCount:  b.SnapshotCount.Load(),
		SnapshotBytes:  b.SnapshotBytes.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	WriteCount     int64
	WriteParticles int64
	WriteAvgNanos  int64
	PruneCount     int64
	PruneAvgNanos  int64
	LastOccupied   int64
	GrowCount      int64
	GrowErrors     int64
	Slots          int64
	ExportCount    int64
	ExportItems    int64
	ExportErrors   int64
	SnapshotCount  int64
	SnapshotBytes  int64
	SnapshotErrors int64
}
