package iostat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
)

// BuildPoint converts a device row into a point stamped with the current context
func BuildPoint(line string, pc *Context) (domain.Point, error) {
	if pc == nil || pc.Host == "" {
		return domain.Point{}, fmt.Errorf("%w: no host line before device row", ErrMissingContext)
	}
	if pc.Timestamp.IsZero() {
		return domain.Point{}, fmt.Errorf("%w: no timestamp line before device row", ErrMissingContext)
	}

	tokens := strings.Fields(line)
	if len(tokens) < domain.FieldCount+1 {
		return domain.Point{}, fmt.Errorf("%w: expected %d columns, got %d",
			ErrMalformedNumericField, domain.FieldCount+1, len(tokens))
	}

	point := domain.Point{
		Measurement: domain.Measurement,
		Cell:        pc.Host,
		Disk:        tokens[0],
		Time:        pc.Timestamp.Truncate(time.Second),
	}

	for i := 0; i < domain.FieldCount; i++ {
		v, err := strconv.ParseFloat(tokens[i+1], 64)
		if err != nil {
			return domain.Point{}, fmt.Errorf("%w: %s=%q", ErrMalformedNumericField, domain.FieldNames[i], tokens[i+1])
		}
		point.Fields[i] = v
	}

	return point, nil
}
