package domain

import "time"

// ImportMetrics describes one finished (or failed) archive import
type ImportMetrics struct {
	RunID       string
	Timestamp   time.Time
	Cell        string // Last host identity seen in the file
	ClusterName string // Resolved through the cell map, falls back to Cell
	FilePath    string
	FileName    string

	LinesRead     uint64
	PointsWritten uint64
	Flushes       uint32
	StartTime     time.Time
	EndTime       time.Time
	ParsingTimeMs uint64
	PointsPerSec  float64
	Error         string

	// Latency summary over all rows of the file
	AwaitP50 float64
	AwaitP99 float64
	UtilP99  float64
	UtilMax  float64
}
