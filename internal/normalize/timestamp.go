package normalize

import (
	"strings"
	"time"
	// Vendor files carry named-zone local times; embed the zone database so
	// conversion works on hosts without a system tzdata.
	_ "time/tzdata"
)

// TimeReason classifies why LocalTimeUTC returned nil.
type TimeReason int

const (
	TimeOK TimeReason = iota
	TimeUnparseable
	TimeAmbiguous // fall-back wall time occurs twice; stored as missing
)

// naiveLayouts are the timestamp shapes seen across vendor exports, tried in
// order. All are zone-less; layouts with an explicit offset are handled first.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006 15:04:05",
	"2006-01-02",
	"1/2/2006",
}

// ParseDate parses a date-only vendor cell to a UTC midnight time.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "1/2/2006", "01/02/2006", "2006-01-02 15:04:05", "1/2/2006 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// LocalTimeUTC parses a naive vendor timestamp, attaches the named zone and
// converts to UTC.
//
// DST handling follows the ingestion contract: wall times inside a
// spring-forward gap are shifted forward through the gap; wall times that
// occur twice during fall-back are ambiguous and reported missing, because
// without a vendor-supplied offset either instant is equally plausible.
// Timestamps carrying an explicit offset (RFC 3339) convert directly.
func LocalTimeUTC(s string, loc *time.Location) (*time.Time, TimeReason) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, TimeUnparseable
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u, TimeOK
	}

	for _, layout := range naiveLayouts {
		w, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, loc)
		if sameWall(t, w) && (sameWall(t.Add(-time.Hour), w) || sameWall(t.Add(time.Hour), w)) {
			return nil, TimeAmbiguous
		}
		u := t.UTC()
		return &u, TimeOK
	}
	return nil, TimeUnparseable
}

// sameWall reports whether t's wall clock in its own zone matches w's.
func sameWall(t, w time.Time) bool {
	return t.Year() == w.Year() && t.Month() == w.Month() && t.Day() == w.Day() &&
		t.Hour() == w.Hour() && t.Minute() == w.Minute() && t.Second() == w.Second()
}
