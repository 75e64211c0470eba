package etl

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nullTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "none": true, "null": true, "-": true,
}

// String returns nil for the spellings of a missing value.
func String(v string) *string {
	v = strings.TrimSpace(v)
	if nullTokens[strings.ToLower(v)] {
		return nil
	}
	return &v
}

// Float parses a number, tolerating thousands separators.
func Float(v string) *float64 {
	s := String(v)
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(*s, ",", ""), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// Money parses "$1,234,567.89".
func Money(v string) *float64 {
	return Float(strings.ReplaceAll(v, "$", ""))
}

// Int parses an integer. Float text such as "72.0" is truncated; values
// outside the 32-bit range, infinities and NaN count as missing.
func Int(v string) *int {
	s := String(v)
	if s == nil {
		return nil
	}
	clean := strings.ReplaceAll(*s, ",", "")
	if n, err := strconv.ParseInt(clean, 10, 32); err == nil {
		i := int(n)
		return &i
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// Bool accepts 1/0, true/false, yes/no, t/f, y/n and numeric text.
func Bool(v string) *bool {
	s := String(v)
	if s == nil {
		return nil
	}
	var b bool
	switch strings.ToLower(*s) {
	case "1", "true", "yes", "y", "t":
		b = true
	case "0", "false", "no", "n", "f":
		b = false
	default:
		f, err := strconv.ParseFloat(*s, 64)
		if err != nil {
			return nil
		}
		b = f != 0
	}
	return &b
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Date parses the date formats the Kaggle exports use. Only the
// calendar day is kept.
func Date(v string) *time.Time {
	s := String(v)
	if s == nil {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	// Anything starting with an ISO date, e.g. "2019-04-14T00:00:00.000".
	if len(*s) > 10 {
		return Date((*s)[:10])
	}
	return nil
}

var leadingNumber = regexp.MustCompile(`^T?(\d+)$`)

// Position reads the numeric finishing position. The pos column wins;
// otherwise it is derived from the finish text ("T5" → 5, "CUT" → nil).
func Position(pos, finish string) *int {
	if n := Int(pos); n != nil {
		return n
	}
	s := String(finish)
	if s == nil {
		return nil
	}
	m := leadingNumber.FindStringSubmatch(strings.ToUpper(*s))
	if m == nil {
		return nil
	}
	n, _ := strconv.Atoi(m[1])
	return &n
}
