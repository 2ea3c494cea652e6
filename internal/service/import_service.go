package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/SteelMorgan/iostat-loader/internal/archive"
	"github.com/SteelMorgan/iostat-loader/internal/config"
	"github.com/SteelMorgan/iostat-loader/internal/domain"
	"github.com/SteelMorgan/iostat-loader/internal/iostat"
	"github.com/SteelMorgan/iostat-loader/internal/journal"
	"github.com/SteelMorgan/iostat-loader/internal/mapping"
	"github.com/SteelMorgan/iostat-loader/internal/summary"
	"github.com/SteelMorgan/iostat-loader/internal/writer"
)

// ImportService walks a dump directory and loads every archive through the
// iostat parser into the configured sink
type ImportService struct {
	cfg        *config.Config
	sink       writer.Sink
	journal    journal.Journal // nil disables skip-if-imported
	cells      *mapping.CellMap
	classifier *iostat.Classifier
	progress   io.Writer
	runID      string
}

// Report summarizes one run
type Report struct {
	RunID    string
	Files    int
	Imported int
	Skipped  int
	Failed   int
	Points   uint64
	Errors   []error
}

// NewImportService creates the service. j and cells may be nil.
func NewImportService(cfg *config.Config, sink writer.Sink, j journal.Journal, cells *mapping.CellMap, progress io.Writer) (*ImportService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cells == nil {
		cells = mapping.EmptyCellMap()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &ImportService{
		cfg:        cfg,
		sink:       sink,
		journal:    j,
		cells:      cells,
		classifier: iostat.NewClassifier(cfg.SourceTZOffsetHours),
		progress:   progress,
		runID:      uuid.NewString(),
	}, nil
}

// RunID identifies this run in import metrics and the journal
func (s *ImportService) RunID() string {
	return s.runID
}

// WithRunID replaces the generated run id, so the sink and the service agree on it
func (s *ImportService) WithRunID(id string) *ImportService {
	if id != "" {
		s.runID = id
	}
	return s
}

// Run imports every matching archive of the configured directory in name order
func (s *ImportService) Run(ctx context.Context) (Report, error) {
	files, err := archive.ScanDir(s.cfg.Dir, s.cfg.Extensions)
	if err != nil {
		return Report{RunID: s.runID}, err
	}

	log.Info().
		Str("run_id", s.runID).
		Str("dir", s.cfg.Dir).
		Int("files", len(files)).
		Int("workers", s.cfg.Workers).
		Msg("Import run starting")

	return s.ImportFiles(ctx, files)
}

// ImportFiles imports the given archives with up to cfg.Workers in parallel.
// Each archive has its own parse context and batcher. Without KeepGoing the
// first failure stops scheduling further files and is returned.
func (s *ImportService) ImportFiles(ctx context.Context, files []archive.File) (Report, error) {
	report := Report{RunID: s.runID, Files: len(files)}
	var mu sync.Mutex

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range files {
		if gctx.Err() != nil {
			break
		}

		f := f
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			m, skipped, err := s.ImportFile(gctx, f)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case skipped:
				report.Skipped++
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, err)
			default:
				report.Imported++
			}
			report.Points += m.PointsWritten

			if err != nil && !s.cfg.KeepGoing {
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	log.Info().
		Str("run_id", s.runID).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Uint64("points", report.Points).
		Msg("Import run finished")

	if err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// ImportFile loads one archive. skipped is true when the journal shows the
// file unchanged since a completed import.
func (s *ImportService) ImportFile(ctx context.Context, f archive.File) (domain.ImportMetrics, bool, error) {
	m := domain.ImportMetrics{
		RunID:    s.runID,
		FilePath: f.Path,
		FileName: f.Name,
	}

	if s.journal != nil && s.cfg.SkipImported {
		entry, err := s.journal.Get(ctx, f.Path)
		if err != nil {
			log.Warn().Err(err).Str("file", f.Path).Msg("Journal lookup failed, importing anyway")
		} else if entry.Matches(f.Size, f.ModUnix) {
			log.Info().
				Str("file", f.Name).
				Str("imported_by", entry.RunID).
				Msg("Already imported, skipping")
			return m, true, nil
		}
	}

	rc, err := archive.Open(f.Path)
	if err != nil {
		return m, false, err
	}
	defer rc.Close()

	lat, err := summary.NewLatency(summary.DefaultAccuracy)
	if err != nil {
		return m, false, err
	}

	batcher := iostat.NewBatcher(s.sink, s.cfg.BatchSize, s.progress)
	proc := iostat.NewProcessor(f.Name, s.classifier, batcher)
	proc.OnPoint = lat.Observe

	m.StartTime = time.Now()
	res, procErr := proc.Process(ctx, rc)
	m.EndTime = time.Now()

	s.fillMetrics(&m, res, batcher, lat.Stats(), procErr)

	if err := s.sink.WriteImportMetrics(ctx, &m); err != nil {
		log.Warn().Err(err).Str("file", f.Name).Msg("Failed to write import metrics")
	}

	if procErr != nil {
		log.Error().Err(procErr).Str("file", f.Path).Msg("Import failed")
		return m, false, fmt.Errorf("import %s: %w", f.Path, procErr)
	}

	if s.journal != nil {
		err := s.journal.Put(ctx, journal.Entry{
			Path:       f.Path,
			Size:       f.Size,
			ModUnix:    f.ModUnix,
			Points:     m.PointsWritten,
			RunID:      s.runID,
			ImportedAt: m.EndTime.UTC(),
		})
		if err != nil {
			log.Warn().Err(err).Str("file", f.Path).Msg("Failed to record import in journal")
		}
	}

	return m, false, nil
}

func (s *ImportService) fillMetrics(m *domain.ImportMetrics, res iostat.Result, b *iostat.Batcher, lat summary.Stats, err error) {
	m.Timestamp = m.EndTime.UTC()
	m.Cell = res.Host
	m.ClusterName = s.cells.ClusterName(res.Host)
	m.LinesRead = uint64(res.Lines)
	m.PointsWritten = uint64(b.Written())
	m.Flushes = uint32(b.Flushes())

	elapsed := m.EndTime.Sub(m.StartTime)
	m.ParsingTimeMs = uint64(elapsed.Milliseconds())
	if elapsed > 0 {
		m.PointsPerSec = float64(m.PointsWritten) / elapsed.Seconds()
	}

	m.AwaitP50 = lat.AwaitP50
	m.AwaitP99 = lat.AwaitP99
	m.UtilP99 = lat.UtilP99
	m.UtilMax = lat.UtilMax

	if err != nil {
		m.Error = err.Error()
	}
}

// Err joins the per-file errors of a report
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}
