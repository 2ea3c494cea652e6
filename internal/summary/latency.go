// Package summary keeps per-file quantile sketches of device latency and
// utilization, reported with the import metrics.
package summary

import (
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
)

// DefaultAccuracy is the relative accuracy of the quantile sketches
const DefaultAccuracy = 0.01

// Latency accumulates await and %util over the points of one file.
// It is not safe for concurrent use; each file gets its own.
type Latency struct {
	await   *ddsketch.DDSketch
	util    *ddsketch.DDSketch
	utilMax float64
	count   int
}

// Stats is a snapshot of a Latency summary
type Stats struct {
	Count    int
	AwaitP50 float64
	AwaitP99 float64
	UtilP99  float64
	UtilMax  float64
}

// NewLatency creates an empty summary
func NewLatency(accuracy float64) (*Latency, error) {
	await, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("failed to create await sketch: %w", err)
	}
	util, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("failed to create util sketch: %w", err)
	}
	return &Latency{await: await, util: util, utilMax: math.Inf(-1)}, nil
}

// Observe adds the await and %util columns of p.
// Negative or NaN values cannot go into a sketch and are skipped.
func (l *Latency) Observe(p *domain.Point) {
	l.count++

	if v := p.Fields[domain.FieldAwait]; v >= 0 {
		_ = l.await.Add(v)
	}
	if v := p.Fields[domain.FieldUtil]; v >= 0 {
		_ = l.util.Add(v)
		if v > l.utilMax {
			l.utilMax = v
		}
	}
}

// Stats returns the current quantiles. Empty sketches report zeros.
func (l *Latency) Stats() Stats {
	s := Stats{Count: l.count}
	if !l.await.IsEmpty() {
		s.AwaitP50, _ = l.await.GetValueAtQuantile(0.5)
		s.AwaitP99, _ = l.await.GetValueAtQuantile(0.99)
	}
	if !l.util.IsEmpty() {
		s.UtilP99, _ = l.util.GetValueAtQuantile(0.99)
		s.UtilMax = l.utilMax
	}
	return s
}
