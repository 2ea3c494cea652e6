package writer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
)

// ErrWriterClosed is returned when writing to a closed parquet sink
var ErrWriterClosed = errors.New("parquet writer closed")

// PointRow is the parquet layout of a point
type PointRow struct {
	TimeSec int64   `parquet:"time_sec"`
	Cell    string  `parquet:"cell,zstd"`
	Disk    string  `parquet:"disk,zstd"`
	RrqmS   float64 `parquet:"rrqm_s"`
	WrqmS   float64 `parquet:"wrqm_s"`
	RS      float64 `parquet:"r_s"`
	WS      float64 `parquet:"w_s"`
	RsecS   float64 `parquet:"rsec_s"`
	WsecS   float64 `parquet:"wsec_s"`
	AvgrqSz float64 `parquet:"avgrq_sz"`
	AvgquSz float64 `parquet:"avgqu_sz"`
	Await   float64 `parquet:"await"`
	RAwait  float64 `parquet:"r_await"`
	WAwait  float64 `parquet:"w_await"`
	Svctm   float64 `parquet:"svctm"`
	Util    float64 `parquet:"util"`
	PointID string  `parquet:"point_id"`
}

// MetricsRow is the parquet layout of import metrics
type MetricsRow struct {
	RunID         string  `parquet:"run_id"`
	Cell          string  `parquet:"cell"`
	ClusterName   string  `parquet:"cluster_name"`
	FilePath      string  `parquet:"file_path"`
	LinesRead     uint64  `parquet:"lines_read"`
	PointsWritten uint64  `parquet:"points_written"`
	Flushes       uint32  `parquet:"flushes"`
	StartUnixMs   int64   `parquet:"start_ms"`
	EndUnixMs     int64   `parquet:"end_ms"`
	ParsingTimeMs uint64  `parquet:"parsing_time_ms"`
	Error         string  `parquet:"error,optional"`
	AwaitP50      float64 `parquet:"await_p50"`
	AwaitP99      float64 `parquet:"await_p99"`
	UtilP99       float64 `parquet:"util_p99"`
	UtilMax       float64 `parquet:"util_max"`
}

// ParquetWriter writes all points of a run into one zstd parquet file and the
// import metrics into a second one next to it.
type ParquetWriter struct {
	mu      sync.Mutex
	dir     string
	points  *parquetFile[PointRow]
	metrics *parquetFile[MetricsRow]
	closed  bool
}

type parquetFile[T any] struct {
	path string
	file *os.File
	w    *parquet.GenericWriter[T]
	rows int64
}

func openParquetFile[T any](path string) (*parquetFile[T], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &parquetFile[T]{
		path: path,
		file: f,
		w:    parquet.NewGenericWriter[T](f, parquet.Compression(&parquet.Zstd)),
	}, nil
}

func (p *parquetFile[T]) close() error {
	if err := p.w.Close(); err != nil {
		p.file.Close()
		return fmt.Errorf("close writer %s: %w", p.path, err)
	}
	return p.file.Close()
}

// NewParquetWriter creates <dir>/iostat-<runID>.parquet and <dir>/imports-<runID>.parquet
func NewParquetWriter(dir, runID string) (*ParquetWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	points, err := openParquetFile[PointRow](filepath.Join(dir, fmt.Sprintf("iostat-%s.parquet", runID)))
	if err != nil {
		return nil, err
	}
	metrics, err := openParquetFile[MetricsRow](filepath.Join(dir, fmt.Sprintf("imports-%s.parquet", runID)))
	if err != nil {
		points.close()
		return nil, err
	}

	log.Info().
		Str("points_file", points.path).
		Str("metrics_file", metrics.path).
		Msg("Parquet sink opened")

	return &ParquetWriter{dir: dir, points: points, metrics: metrics}, nil
}

func (w *ParquetWriter) WritePoints(_ context.Context, points []domain.Point, precision domain.Precision) error {
	if len(points) == 0 {
		return nil
	}

	rows := make([]PointRow, len(points))
	for i := range points {
		ts, err := applyPrecision(points[i].Time, precision)
		if err != nil {
			return err
		}
		rows[i] = toPointRow(&points[i], ts.Unix())
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	n, err := w.points.w.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.points.rows += int64(n)
	return nil
}

func (w *ParquetWriter) WriteImportMetrics(_ context.Context, m *domain.ImportMetrics) error {
	row := MetricsRow{
		RunID:         m.RunID,
		Cell:          m.Cell,
		ClusterName:   m.ClusterName,
		FilePath:      m.FilePath,
		LinesRead:     m.LinesRead,
		PointsWritten: m.PointsWritten,
		Flushes:       m.Flushes,
		StartUnixMs:   m.StartTime.UnixMilli(),
		EndUnixMs:     m.EndTime.UnixMilli(),
		ParsingTimeMs: m.ParsingTimeMs,
		Error:         m.Error,
		AwaitP50:      m.AwaitP50,
		AwaitP99:      m.AwaitP99,
		UtilP99:       m.UtilP99,
		UtilMax:       m.UtilMax,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if _, err := w.metrics.w.Write([]MetricsRow{row}); err != nil {
		return fmt.Errorf("write metrics row: %w", err)
	}
	w.metrics.rows++
	return nil
}

// Close finalizes both parquet files
func (w *ParquetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := errors.Join(w.points.close(), w.metrics.close())

	log.Info().
		Str("dir", w.dir).
		Int64("points", w.points.rows).
		Int64("imports", w.metrics.rows).
		Msg("Parquet sink closed")

	return err
}

// PointsPath returns the path of the points file
func (w *ParquetWriter) PointsPath() string {
	return w.points.path
}

func toPointRow(p *domain.Point, unixSec int64) PointRow {
	f := p.Fields
	return PointRow{
		TimeSec: unixSec,
		Cell:    p.Cell,
		Disk:    p.Disk,
		RrqmS:   f[0],
		WrqmS:   f[1],
		RS:      f[2],
		WS:      f[3],
		RsecS:   f[4],
		WsecS:   f[5],
		AvgrqSz: f[6],
		AvgquSz: f[7],
		Await:   f[8],
		RAwait:  f[9],
		WAwait:  f[10],
		Svctm:   f[11],
		Util:    f[12],
		PointID: PointID(p).String(),
	}
}
