package iostat

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LineKind is the category a raw line falls into
type LineKind int

const (
	KindBlank LineKind = iota
	KindNoise
	KindHost
	KindTimestamp
	KindData
)

func (k LineKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindNoise:
		return "noise"
	case KindHost:
		return "host"
	case KindTimestamp:
		return "timestamp"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Header lines written around iostat output are matched from the line start
var (
	noisePattern     = regexp.MustCompile(`^(?:#|zzz|avg-cpu|Device| )`)
	hostLinePattern  = regexp.MustCompile(`^.*\((.*)\)`)
	hostNamePattern  = regexp.MustCompile(`\((.*?)\.`)
	hostParenPattern = regexp.MustCompile(`\(([^)]*)\)`)
	timestampPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`)
)

const timestampLayout = "01/02/06 15:04:05"

// Classification is the result of classifying one line.
// Host is set for KindHost, Timestamp (UTC) for KindTimestamp.
type Classification struct {
	Kind      LineKind
	Host      string
	Timestamp time.Time
}

// Classifier sorts lines into kinds. It keeps no state between calls.
type Classifier struct {
	loc *time.Location
}

// NewClassifier creates a classifier reading timestamps in a fixed UTC offset
func NewClassifier(tzOffsetHours int) *Classifier {
	name := fmt.Sprintf("UTC%+d", tzOffsetHours)
	return &Classifier{
		loc: time.FixedZone(name, tzOffsetHours*3600),
	}
}

// Classify returns the kind of line. Checks run blank, noise, host, timestamp,
// anything else is a data row.
func (c *Classifier) Classify(line string) (Classification, error) {
	if strings.TrimSpace(line) == "" {
		return Classification{Kind: KindBlank}, nil
	}
	if noisePattern.MatchString(line) {
		return Classification{Kind: KindNoise}, nil
	}
	if hostLinePattern.MatchString(line) {
		return Classification{Kind: KindHost, Host: extractHost(line)}, nil
	}
	if timestampPattern.MatchString(line) {
		ts, err := time.ParseInLocation(timestampLayout, line[:len(timestampLayout)], c.loc)
		if err != nil {
			return Classification{Kind: KindTimestamp}, fmt.Errorf("invalid timestamp: %w", err)
		}
		return Classification{Kind: KindTimestamp, Timestamp: ts.UTC()}, nil
	}
	return Classification{Kind: KindData}, nil
}

// extractHost returns the text between the first "(" and the next ".".
// Without a dot the whole parenthesised text is used.
func extractHost(line string) string {
	if m := hostNamePattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := hostParenPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}
