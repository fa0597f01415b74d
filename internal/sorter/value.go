package sorter

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Value is the parsed form of a cell. Text columns use Text; every other
// column type uses Num.
type Value struct {
	Text string
	Num  float64
}

var leadingFloat = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// timeLayouts are tried in order. Layouts without an offset are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseValue(typ ColumnType, c *Cell) Value {
	if c == nil {
		return Value{}
	}
	switch typ {
	case Number:
		return Value{Num: parseNumber(c.Text)}
	case Time:
		return Value{Num: parseTimestamp(c.DateTime)}
	case Duration:
		return Value{Num: parseDuration(c.Text)}
	default:
		return Value{Text: strings.TrimSpace(c.Text)}
	}
}

// parseNumber reads the longest numeric prefix of s. Text without one is
// NaN.
func parseNumber(s string) float64 {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return math.NaN()
	}
	switch m {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseTimestamp returns Unix milliseconds, or 0 for a missing or
// unreadable timestamp.
func parseTimestamp(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixMilli())
		}
	}
	return 0
}

// parseDuration converts MM:SS to seconds. Anything else is 0.
func parseDuration(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0
	}
	minutes, ok := parseLeadingInt(parts[0])
	if !ok {
		return 0
	}
	seconds, ok := parseLeadingInt(parts[1])
	if !ok {
		return 0
	}
	return float64(60*minutes + seconds)
}

func parseLeadingInt(s string) (int, bool) {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// compareNumbers orders a and b. NaN compares equal to every value, so
// rows holding NaN have no defined position relative to other rows.
func compareNumbers(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
