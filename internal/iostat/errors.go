package iostat

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedNumericField is returned when a device row is short or a column is not a float
	ErrMalformedNumericField = errors.New("malformed numeric field")

	// ErrMissingContext is returned when a device row comes before a host or timestamp line
	ErrMissingContext = errors.New("missing parse context")

	// ErrWriterFailure wraps any error reported by the point writer on flush
	ErrWriterFailure = errors.New("writer failure")
)

// LineError carries the position of the line that aborted a file
type LineError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
	}
	return fmt.Sprintf("%s:%d %q: %v", e.File, e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
