package writer

import (
	"context"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
)

// PointWriter persists a batch of points. Implementations must be safe for
// concurrent use and must not keep the points slice after returning.
type PointWriter interface {
	WritePoints(ctx context.Context, points []domain.Point, precision domain.Precision) error
}

// MetricsWriter records per-file import metrics
type MetricsWriter interface {
	WriteImportMetrics(ctx context.Context, metrics *domain.ImportMetrics) error
}

// Sink is a point writer with its metrics table and lifecycle
type Sink interface {
	PointWriter
	MetricsWriter

	// Close flushes anything the sink holds and releases it
	Close() error
}
