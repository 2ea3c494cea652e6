package iostat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
	"github.com/SteelMorgan/iostat-loader/internal/observability"
)

const maxLineSize = 1024 * 1024

// Result summarizes one processed stream
type Result struct {
	Lines   int
	Points  int
	Flushes int
	Host    string // Last host identity seen
	Elapsed time.Duration
}

// Processor drives one file through classify, context update, build and batch.
// A Processor owns its Context and Batcher and is used for a single stream.
type Processor struct {
	name       string
	classifier *Classifier
	batcher    *Batcher
	pc         *Context

	// OnPoint, when set, sees every point before it is batched
	OnPoint func(*domain.Point)
}

// NewProcessor creates a processor for the named stream with a fresh context
func NewProcessor(name string, classifier *Classifier, batcher *Batcher) *Processor {
	return &Processor{
		name:       name,
		classifier: classifier,
		batcher:    batcher,
		pc:         NewContext(),
	}
}

// Context returns the parse context of the stream
func (p *Processor) Context() *Context {
	return p.pc
}

// Process reads r to the end. Any parse or writer error aborts the stream;
// points still buffered at that moment are not written.
func (p *Processor) Process(ctx context.Context, r io.Reader) (Result, error) {
	start := time.Now()
	var res Result

	ctx, span := observability.StartSpan(ctx, "iostat.process",
		attribute.String("file", p.name),
	)

	log.Info().Str("file", p.name).Msg("Processing")

	err := p.scan(ctx, r, &res)
	res.Host = p.pc.Host
	res.Flushes = p.batcher.Flushes()
	res.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("lines", res.Lines),
		attribute.Int("points", res.Points),
	)
	if err != nil {
		observability.EndSpan(span, err, "process stream")
		return res, err
	}
	observability.EndSpan(span, nil, "process stream")

	log.Info().
		Str("file", p.name).
		Int("points", res.Points).
		Int("flushes", res.Flushes).
		Dur("elapsed", res.Elapsed.Round(time.Second)).
		Msgf("Done in %d seconds", int64(res.Elapsed.Round(time.Second)/time.Second))

	return res, nil
}

func (p *Processor) scan(ctx context.Context, r io.Reader, res *Result) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		res.Lines++
		line := trimEOL(scanner.Text())

		if err := p.handleLine(ctx, line, res); err != nil {
			return &LineError{File: p.name, Line: res.Lines, Text: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", p.name, err)
	}

	if err := p.batcher.Finish(ctx); err != nil {
		return fmt.Errorf("%s: final flush: %w", p.name, err)
	}
	return nil
}

func (p *Processor) handleLine(ctx context.Context, line string, res *Result) error {
	c, err := p.classifier.Classify(line)
	if err != nil {
		return err
	}

	switch c.Kind {
	case KindBlank, KindNoise:
		return nil
	case KindHost:
		p.pc.SetHost(c.Host)
		return nil
	case KindTimestamp:
		p.pc.SetTimestamp(c.Timestamp)
		return nil
	}

	point, err := BuildPoint(line, p.pc)
	if err != nil {
		return err
	}
	if p.OnPoint != nil {
		p.OnPoint(&point)
	}
	if err := p.batcher.Add(ctx, point); err != nil {
		return err
	}
	res.Points++
	return nil
}

// trimEOL drops a trailing carriage return left by CRLF input
func trimEOL(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\r' || line[len(line)-1] == '\n') {
		line = line[:len(line)-1]
	}
	return line
}
