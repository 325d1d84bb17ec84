package fleet

import (
	"fmt"
	"strings"
)

// Drop reasons counted by the row builders. Keeping the names in one place
// makes the run summaries comparable across vendors.
const (
	DropMissingTimestamp   = "missing_timestamp"
	DropAmbiguousTimestamp = "ambiguous_timestamp"
	DropNoVehicleMatch     = "no_vehicle_match"
	DropNoChargerMatch     = "no_charger_match"
	DropInvalidGPS         = "invalid_gps"
	DropBadSpeed           = "bad_speed"
	DropBadSOC             = "bad_soc"
	DropDuplicates         = "duplicates"
	DropInvalidSession     = "invalid_session"
	DropMileageRegression  = "mileage_regression"
	DropUnusableRow        = "unusable_row"
)

// Correction reasons: rows kept after repair.
const (
	CorrectGPSOutlierNulled = "gps_outlier_nulled"
	CorrectMileageHalved    = "mileage_doubles_halved"
)

// counter is one named tally; RunSummary keeps them in first-hit order so the
// report reads the same way run after run.
type counter struct {
	Name  string
	Count int
}

// RunSummary is the operator-facing accounting for one file ingestion.
type RunSummary struct {
	Loader   string
	File     string
	RowsRead int

	drops       []counter
	corrections []counter

	Write WriteStats

	// LedgerSkipped is set when the content hash matched a prior run and the
	// file was not processed at all.
	LedgerSkipped bool
}

// NewRunSummary returns a summary for one loader invocation.
func NewRunSummary(loader, file string) *RunSummary {
	return &RunSummary{Loader: loader, File: file}
}

func bump(list []counter, name string, n int) []counter {
	for i := range list {
		if list[i].Name == name {
			list[i].Count += n
			return list
		}
	}
	return append(list, counter{Name: name, Count: n})
}

// Drop counts n rows excluded for the named reason.
func (s *RunSummary) Drop(reason string, n int) {
	if n > 0 {
		s.drops = bump(s.drops, reason, n)
	}
}

// Corrected counts n rows repaired (kept) for the named reason.
func (s *RunSummary) Corrected(reason string, n int) {
	if n > 0 {
		s.corrections = bump(s.corrections, reason, n)
	}
}

// Dropped returns the count for one reason.
func (s *RunSummary) Dropped(reason string) int {
	for _, c := range s.drops {
		if c.Name == reason {
			return c.Count
		}
	}
	return 0
}

// TotalDropped sums all drop counters.
func (s *RunSummary) TotalDropped() int {
	n := 0
	for _, c := range s.drops {
		n += c.Count
	}
	return n
}

// String renders the upload summary block external tooling scrapes.
func (s *RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s Upload Summary ===\n", s.Loader)
	fmt.Fprintf(&b, "File:                         %s\n", s.File)
	if s.LedgerSkipped {
		fmt.Fprintf(&b, "Skipped: content hash already ingested\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Rows read from file:          %d\n", s.RowsRead)
	for _, c := range s.drops {
		fmt.Fprintf(&b, "Dropped (%s): %d\n", strings.ReplaceAll(c.Name, "_", " "), c.Count)
	}
	for _, c := range s.corrections {
		fmt.Fprintf(&b, "Corrected (%s): %d\n", strings.ReplaceAll(c.Name, "_", " "), c.Count)
	}
	fmt.Fprintf(&b, "Total dropped/removed:        %d\n", s.TotalDropped())
	fmt.Fprintf(&b, "Rows attempted to write:      %d\n", s.Write.Attempted)
	fmt.Fprintf(&b, "Inserted (new):               %d\n", s.Write.Inserted)
	fmt.Fprintf(&b, "Updated (changed):            %d\n", s.Write.Updated)
	fmt.Fprintf(&b, "Skipped (unchanged):          %d\n", s.Write.SkippedUnchanged)
	return b.String()
}
