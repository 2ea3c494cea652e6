package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SteelMorgan/iostat-loader/internal/config"
	"github.com/SteelMorgan/iostat-loader/internal/domain"
	"github.com/SteelMorgan/iostat-loader/internal/iostat"
	"github.com/SteelMorgan/iostat-loader/internal/journal"
	"github.com/SteelMorgan/iostat-loader/internal/mapping"
)

type memorySink struct {
	mu      sync.Mutex
	points  []domain.Point
	metrics []domain.ImportMetrics
	failOn  string // Disk name that makes WritePoints fail
}

func (s *memorySink) WritePoints(_ context.Context, points []domain.Point, _ domain.Precision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if s.failOn != "" && p.Disk == s.failOn {
			return errors.New("connection refused")
		}
	}
	s.points = append(s.points, points...)
	return nil
}

func (s *memorySink) WriteImportMetrics(_ context.Context, m *domain.ImportMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, *m)
	return nil
}

func (s *memorySink) Close() error { return nil }

const validDump = `Linux 4.1.12 (%s.example.com)  01/02/23  _x86_64_  (32 CPU)

01/02/23 10:00:00
Device:         rrqm/s   wrqm/s     r/s     w/s   rsec/s   wsec/s avgrq-sz avgqu-sz   await r_await w_await  svctm  %%util
sda 0.00 0.00 1.00 2.00 10.00 20.00 5.00 0.01 1.00 0.50 0.50 0.10 1.50
sdb 0.00 0.00 3.00 4.00 30.00 40.00 5.00 0.02 2.00 1.50 2.50 0.20 3.50

01/02/23 10:00:05
sda 0.00 0.00 1.00 2.00 10.00 20.00 5.00 0.01 4.00 0.50 0.50 0.10 9.50
`

func writeDump(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Dir:                 dir,
		Extensions:          []string{".txt"},
		SourceTZOffsetHours: 3,
		BatchSize:           2,
		Workers:             1,
		SkipImported:        true,
	}
}

func TestRunImportsInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "02.txt", fmt.Sprintf(validDump, "cel02"))
	writeDump(t, dir, "01.txt", fmt.Sprintf(validDump, "cel01"))
	writeDump(t, dir, "ignored.log", "garbage")

	sink := &memorySink{}
	cells := &mapping.CellMap{Cells: map[string]mapping.CellInfo{"cel01": {Cluster: "exa-prod"}}}
	var progress strings.Builder
	svc, err := NewImportService(testConfig(dir), sink, nil, cells, &progress)
	if err != nil {
		t.Fatalf("NewImportService() error = %v", err)
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Files != 2 || report.Imported != 2 || report.Points != 6 {
		t.Errorf("report = %+v", report)
	}
	if len(sink.points) != 6 {
		t.Fatalf("sink got %d points, want 6", len(sink.points))
	}
	if sink.points[0].Cell != "cel01" || sink.points[3].Cell != "cel02" {
		t.Errorf("files imported out of order: %s then %s", sink.points[0].Cell, sink.points[3].Cell)
	}
	if !sink.points[2].Time.Equal(time.Date(2023, 1, 2, 7, 0, 5, 0, time.UTC)) {
		t.Errorf("third point time = %v", sink.points[2].Time)
	}

	if len(sink.metrics) != 2 {
		t.Fatalf("expected metrics per file, got %d", len(sink.metrics))
	}
	m := sink.metrics[0]
	if m.FileName != "01.txt" || m.Cell != "cel01" || m.ClusterName != "exa-prod" {
		t.Errorf("metrics = %+v", m)
	}
	if m.PointsWritten != 3 || m.Flushes != 2 || m.RunID != svc.RunID() || m.Error != "" {
		t.Errorf("metrics = %+v", m)
	}
	if m.UtilMax != 9.5 {
		t.Errorf("UtilMax = %v, want 9.5", m.UtilMax)
	}
	if sink.metrics[1].ClusterName != "cel02" {
		t.Errorf("unmapped cell should fall back to itself, got %q", sink.metrics[1].ClusterName)
	}

	// one dot per full batch and a newline per file
	if progress.String() != ".\n.\n" {
		t.Errorf("progress = %q", progress.String())
	}
}

func TestRunStopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "01.txt", "sda 1 1 1 1 1 1 1 1 1 1 1 1 1\n")
	writeDump(t, dir, "02.txt", fmt.Sprintf(validDump, "cel02"))

	sink := &memorySink{}
	svc, _ := NewImportService(testConfig(dir), sink, nil, nil, nil)

	report, err := svc.Run(context.Background())
	if !errors.Is(err, iostat.ErrMissingContext) {
		t.Fatalf("Run() error = %v, want ErrMissingContext", err)
	}
	if report.Failed != 1 || report.Imported != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(sink.points) != 0 {
		t.Errorf("second file should not be imported, got %d points", len(sink.points))
	}
	if len(sink.metrics) != 1 || sink.metrics[0].Error == "" {
		t.Errorf("failed import should be recorded with its error: %+v", sink.metrics)
	}
}

func TestRunKeepGoing(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "01.txt", "x (cel01.a)\n01/02/23 10:00:00\nsda 1 1 bad 1 1 1 1 1 1 1 1 1 1\n")
	writeDump(t, dir, "02.txt", fmt.Sprintf(validDump, "cel02"))

	cfg := testConfig(dir)
	cfg.KeepGoing = true
	sink := &memorySink{}
	svc, _ := NewImportService(cfg, sink, nil, nil, nil)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Failed != 1 || report.Imported != 1 || len(sink.points) != 3 {
		t.Errorf("report = %+v, points = %d", report, len(sink.points))
	}
	if !errors.Is(report.Err(), iostat.ErrMalformedNumericField) {
		t.Errorf("report.Err() = %v, want ErrMalformedNumericField", report.Err())
	}
}

func TestRunWriterFailure(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "01.txt", fmt.Sprintf(validDump, "cel01"))

	sink := &memorySink{failOn: "sdb"}
	svc, _ := NewImportService(testConfig(dir), sink, nil, nil, nil)

	_, err := svc.Run(context.Background())
	if !errors.Is(err, iostat.ErrWriterFailure) {
		t.Fatalf("Run() error = %v, want ErrWriterFailure", err)
	}
}

func TestRunSkipsJournaledFiles(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "01.txt", fmt.Sprintf(validDump, "cel01"))

	j, err := journal.NewBoltDBJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewBoltDBJournal() error = %v", err)
	}
	defer j.Close()

	sink := &memorySink{}
	first, _ := NewImportService(testConfig(dir), sink, j, nil, nil)
	if _, err := first.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	second, _ := NewImportService(testConfig(dir), sink, j, nil, nil)
	report, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Skipped != 1 || report.Imported != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(sink.points) != 3 {
		t.Errorf("points = %d, want 3 (no reimport)", len(sink.points))
	}

	cfg := testConfig(dir)
	cfg.SkipImported = false
	third, _ := NewImportService(cfg, sink, j, nil, nil)
	if report, _ := third.Run(context.Background()); report.Imported != 1 {
		t.Errorf("SkipImported=false should reimport, report = %+v", report)
	}
}

func TestRunParallelWorkers(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 6; i++ {
		writeDump(t, dir, fmt.Sprintf("%02d.txt", i), fmt.Sprintf(validDump, fmt.Sprintf("cel%02d", i)))
	}

	cfg := testConfig(dir)
	cfg.Workers = 3
	sink := &memorySink{}
	svc, _ := NewImportService(cfg, sink, nil, nil, nil)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Imported != 6 || len(sink.points) != 18 {
		t.Errorf("report = %+v, points = %d", report, len(sink.points))
	}

	// every point keeps the timestamp of its own file's blocks
	for _, p := range sink.points {
		want := time.Date(2023, 1, 2, 7, 0, 0, 0, time.UTC)
		if p.Fields[domain.FieldAwait] == 4 {
			want = want.Add(5 * time.Second)
		}
		if !p.Time.Equal(want) {
			t.Errorf("%s/%s time = %v, want %v", p.Cell, p.Disk, p.Time, want)
		}
	}
}

func TestNewImportServiceValidation(t *testing.T) {
	if _, err := NewImportService(nil, &memorySink{}, nil, nil, nil); err == nil {
		t.Error("expected error without config")
	}
	if _, err := NewImportService(testConfig(t.TempDir()), nil, nil, nil, nil); err == nil {
		t.Error("expected error without sink")
	}
}
