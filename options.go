package lineage

import (
	"log/slog"

	"github.com/hupe1980/lineage/persistence"
	"github.com/hupe1980/lineage/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	initialCapacity  int
	compression      persistence.CompressionType
}

// Option configures Cache constructor/load behavior.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for the cache.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for the cache.
//
// Example:
//
//	logger := lineage.NewJSONLogger(slog.LevelDebug)
//	c, err := lineage.New(3, lineage.WithLogger(logger))
//
// If nil is passed, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel configures a text logger at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryController charges slot storage growth against the controller's
// memory budget. When the budget refuses a growth step the write panics with
// ErrMemoryExhausted.
func WithMemoryController(rc *resource.Controller) Option {
	return func(o *options) {
		if rc != nil {
			o.controller = rc
		}
	}
}

// WithInitialCapacity pre-allocates slot storage for n slots.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialCapacity = n
		}
	}
}

// WithSnapshotCompression selects the block compression used by WriteTo.
// Snapshots record their compression, so ReadFrom accepts any.
func WithSnapshotCompression(c persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

func applyOptions(optFns []Option) options {
	opts := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      persistence.CompressionLZ4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}
