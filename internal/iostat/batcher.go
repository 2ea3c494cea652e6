package iostat

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
	"github.com/SteelMorgan/iostat-loader/internal/observability"
	"github.com/SteelMorgan/iostat-loader/internal/writer"
)

// DefaultBatchSize is the number of points handed to the writer per flush
const DefaultBatchSize = 2000

// Batcher buffers points and hands them to the writer in fixed-size batches.
// The buffer is reused after every flush, so the writer must not keep the slice.
type Batcher struct {
	w        writer.PointWriter
	size     int
	buf      []domain.Point
	progress io.Writer

	flushes int
	written int
}

// NewBatcher creates a batcher. size <= 0 selects DefaultBatchSize,
// a nil progress writer disables the progress dots.
func NewBatcher(w writer.PointWriter, size int, progress io.Writer) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Batcher{
		w:        w,
		size:     size,
		buf:      make([]domain.Point, 0, size),
		progress: progress,
	}
}

// Add appends a point and flushes once the buffer is full
func (b *Batcher) Add(ctx context.Context, p domain.Point) error {
	b.buf = append(b.buf, p)
	if len(b.buf) < b.size {
		return nil
	}

	if err := b.flush(ctx); err != nil {
		return err
	}
	fmt.Fprint(b.progress, ".")
	return nil
}

// Finish flushes whatever is left, even an empty buffer. Call it once at end of stream.
func (b *Batcher) Finish(ctx context.Context) error {
	err := b.flush(ctx)
	fmt.Fprintln(b.progress)
	return err
}

// Pending returns the number of buffered points
func (b *Batcher) Pending() int {
	return len(b.buf)
}

// Flushes returns the number of writer calls made so far
func (b *Batcher) Flushes() int {
	return b.flushes
}

// Written returns the number of points accepted by the writer
func (b *Batcher) Written() int {
	return b.written
}

func (b *Batcher) flush(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "iostat.flush",
		attribute.Int("batch_size", len(b.buf)),
	)

	n := len(b.buf)
	err := b.w.WritePoints(ctx, b.buf, domain.PrecisionSeconds)
	b.flushes++
	b.buf = b.buf[:0]
	if err != nil {
		observability.EndSpan(span, err, "write points")
		return fmt.Errorf("%w: %d points: %w", ErrWriterFailure, n, err)
	}

	b.written += n
	observability.EndSpan(span, nil, "write points")
	return nil
}
