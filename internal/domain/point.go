package domain

import "time"

// Measurement is the series name every iostat point is written under
const Measurement = "iostat"

// Precision is the time precision handed to a point writer
type Precision string

const (
	PrecisionSeconds Precision = "s"
)

// FieldCount is the number of numeric columns in an extended iostat device row
const FieldCount = 13

// FieldNames lists the device row columns in the order iostat prints them
var FieldNames = [FieldCount]string{
	"rrqm/s",
	"wrqm/s",
	"r/s",
	"w/s",
	"rsec/s",
	"wsec/s",
	"avgrq-sz",
	"avgqu-sz",
	"await",
	"r_await",
	"w_await",
	"svctm",
	"%util",
}

// Field indexes used outside the parser
const (
	FieldAwait = 8
	FieldUtil  = 12
)

// Point is one device sample for one interval
type Point struct {
	Measurement string
	Cell        string    // Host identity taken from the header line
	Disk        string    // Device name, first column of the row
	Time        time.Time // UTC, second precision
	Fields      [FieldCount]float64
}

// Tags returns the tag set of the point
func (p *Point) Tags() map[string]string {
	return map[string]string{
		"cell": p.Cell,
		"disk": p.Disk,
	}
}

// Field returns a field value by its iostat column name
func (p *Point) Field(name string) (float64, bool) {
	for i, n := range FieldNames {
		if n == name {
			return p.Fields[i], true
		}
	}
	return 0, false
}
