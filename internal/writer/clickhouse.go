package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
)

// ClickHouse DateTime valid range
var (
	minClickHouseDateTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2106, 2, 7, 6, 28, 15, 0, time.UTC)
)

// batchPreparer is the part of the ClickHouse connection the writer needs
type batchPreparer interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// ClickHouseWriter inserts points and import metrics into ClickHouse.
// Every WritePoints call becomes one INSERT; there is no retry on failure.
type ClickHouseWriter struct {
	conn         batchPreparer
	table        string
	metricsTable string
}

// NewClickHouseWriter creates a writer for the given tables
func NewClickHouseWriter(conn batchPreparer, table, metricsTable string) *ClickHouseWriter {
	return &ClickHouseWriter{
		conn:         conn,
		table:        table,
		metricsTable: metricsTable,
	}
}

// WritePoints inserts the points as a single batch
func (w *ClickHouseWriter) WritePoints(ctx context.Context, points []domain.Point, precision domain.Precision) error {
	if len(points) == 0 {
		log.Debug().Str("table", w.table).Msg("Empty batch, nothing to insert")
		return nil
	}

	start := time.Now()

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i := range points {
		row, err := pointRow(&points[i], precision)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("point %d (%s/%s): %w", i, points[i].Cell, points[i].Disk, err)
		}
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append point %d (%s/%s at %s): %w",
				i, points[i].Cell, points[i].Disk, points[i].Time.Format(time.RFC3339), err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch of %d points: %w", len(points), err)
	}

	log.Debug().
		Str("table", w.table).
		Int("points", len(points)).
		Dur("elapsed", time.Since(start)).
		Msg("Flushed points to ClickHouse")

	return nil
}

// WriteImportMetrics inserts one row describing a finished import
func (w *ClickHouseWriter) WriteImportMetrics(ctx context.Context, m *domain.ImportMetrics) error {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.metricsTable)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	err = batch.Append(
		m.Timestamp,
		m.RunID,
		m.Cell,
		m.ClusterName,
		m.FilePath,
		m.FileName,
		m.LinesRead,
		m.PointsWritten,
		m.Flushes,
		m.ParsingTimeMs,
		m.PointsPerSec,
		m.StartTime,
		m.EndTime,
		m.Error,
		m.AwaitP50,
		m.AwaitP99,
		m.UtilP99,
		m.UtilMax,
	)
	if err != nil {
		_ = batch.Abort()
		return fmt.Errorf("failed to append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Debug().
		Str("file", m.FileName).
		Uint64("points", m.PointsWritten).
		Msg("Import metrics written to ClickHouse")

	return nil
}

// Close is a no-op, the connection belongs to the clickhouse client
func (w *ClickHouseWriter) Close() error {
	return nil
}

// pointRow lays a point out in table column order:
// time, cell, disk, 13 metrics, point_id
func pointRow(p *domain.Point, precision domain.Precision) ([]any, error) {
	ts, err := applyPrecision(p.Time, precision)
	if err != nil {
		return nil, err
	}
	if ts.Before(minClickHouseDateTime) || ts.After(maxClickHouseDateTime) {
		return nil, fmt.Errorf("time %s outside DateTime range", ts.Format(time.RFC3339))
	}

	row := make([]any, 0, domain.FieldCount+4)
	row = append(row, ts, p.Cell, p.Disk)
	for _, v := range p.Fields {
		row = append(row, v)
	}
	row = append(row, PointID(p))
	return row, nil
}

func applyPrecision(t time.Time, precision domain.Precision) (time.Time, error) {
	switch precision {
	case domain.PrecisionSeconds, "":
		return t.UTC().Truncate(time.Second), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time precision %q", precision)
	}
}
