// Package normalize converts vendor-specific field representations into
// canonical storage units. Every function is total: unparseable input yields
// nil (the missing sentinel), never an error. The decision of skip-vs-default
// belongs to the row builders.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numberRe grabs the first numeric token inside a vendor string, tolerating
// currency symbols, thousands separators and trailing unit suffixes such as
// "106 kWh" or "$1,204.50 (tow)".
var numberRe = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

var digitsRe = regexp.MustCompile(`\d+`)

// Float parses a vendor numeric cell. Percent signs, commas and unit
// suffixes are ignored; nil on anything without a numeric token.
func Float(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return &v
	}
	m := numberRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// Int parses a vendor numeric cell and rounds to the nearest integer.
func Int(s string) *int64 {
	f := Float(s)
	if f == nil {
		return nil
	}
	v := int64(math.Round(*f))
	return &v
}

// Fraction normalizes a state-of-charge style value to [0,1].
// Accepts 0-1 and 0-100 scales ("0.45", "45", "45%"); values above 1.000001
// are treated as percentages. The result is clamped to [0,1] and rounded to
// four decimals.
func Fraction(s string) *float64 {
	f := Float(s)
	if f == nil {
		return nil
	}
	v := FractionValue(*f)
	return &v
}

// FractionValue applies the Fraction scale/clamp/round rules to an already
// parsed number.
func FractionValue(v float64) float64 {
	if v > 1.000001 {
		v /= 100.0
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*10000) / 10000
}

// MinutesToHours converts a minute count to hours, rounded to two decimals.
func MinutesToHours(s string) *float64 {
	f := Float(s)
	if f == nil {
		return nil
	}
	v := math.Round(*f/60.0*100) / 100
	return &v
}

// DurationMinutes parses a vendor duration cell into total minutes.
// Understood forms: "HH:MM:SS" and "H:MM", Go-style strings like "1h 23m",
// and bare numbers, which Excel stores as fractions of a day.
func DurationMinutes(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		m := v * 24 * 60
		return &m
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil
		}
		var fields [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil || v < 0 {
				return nil
			}
			fields[i] = v
		}
		m := fields[0]*60 + fields[1]
		if len(parts) == 3 {
			m += fields[2] / 60
		}
		return &m
	}
	if d, err := time.ParseDuration(strings.ReplaceAll(strings.ToLower(s), " ", "")); err == nil {
		m := d.Minutes()
		return &m
	}
	return nil
}

// Bool maps vendor yes/no cells to booleans, case and space insensitive.
func Bool(s string) *bool {
	t, f := true, false
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "t", "1":
		return &t
	case "n", "no", "false", "f", "0":
		return &f
	}
	return nil
}

// Money extracts the first currency amount from a free-text cost cell and
// returns whatever descriptive text remains ("$250 (towing)" -> 250, "towing").
func Money(s string) (*float64, *string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	m := numberRe.FindStringIndex(s)
	if m == nil {
		d := s
		return nil, &d
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s[m[0]:m[1]], ",", ""), 64)
	if err != nil {
		d := s
		return nil, &d
	}
	rest := strings.TrimSpace(strings.Trim(strings.ReplaceAll(s[:m[0]]+s[m[1]:], "$", ""), "() "))
	if rest == "" {
		return &v, nil
	}
	return &v, &rest
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Str trims a text cell and returns nil when nothing is left. Free-text
// columns store NULL rather than empty strings.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Digits retains only the numeric part of a vehicle label ("Truck #12" -> "12").
// Empty result means no digits were present.
func Digits(s string) string {
	return strings.Join(digitsRe.FindAllString(s, -1), "")
}
