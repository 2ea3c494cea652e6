package writer

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
)

// DiscardWriter counts points and drops them. Used in read-only mode to
// validate archives without touching a database.
type DiscardWriter struct {
	points  atomic.Int64
	batches atomic.Int64
}

// NewDiscardWriter creates a discarding sink
func NewDiscardWriter() *DiscardWriter {
	return &DiscardWriter{}
}

func (w *DiscardWriter) WritePoints(_ context.Context, points []domain.Point, _ domain.Precision) error {
	w.points.Add(int64(len(points)))
	w.batches.Add(1)
	return nil
}

func (w *DiscardWriter) WriteImportMetrics(_ context.Context, m *domain.ImportMetrics) error {
	log.Debug().
		Str("file", m.FileName).
		Uint64("points", m.PointsWritten).
		Msg("Read-only mode, import metrics not stored")
	return nil
}

func (w *DiscardWriter) Close() error {
	log.Info().
		Int64("points", w.points.Load()).
		Int64("batches", w.batches.Load()).
		Msg("Read-only run finished, points discarded")
	return nil
}

// Points returns the number of points seen
func (w *DiscardWriter) Points() int64 {
	return w.points.Load()
}
