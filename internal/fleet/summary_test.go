package fleet

import (
	"strings"
	"testing"
)

func TestRunSummaryCounters(t *testing.T) {
	s := NewRunSummary("test-loader", "/data/file.csv")
	s.Drop(DropDuplicates, 2)
	s.Drop(DropBadSOC, 1)
	s.Drop(DropDuplicates, 3)
	s.Drop(DropInvalidGPS, 0) // zero counts are not recorded
	s.Corrected(CorrectMileageHalved, 1)

	if got := s.Dropped(DropDuplicates); got != 5 {
		t.Errorf("Dropped(duplicates) = %d, want 5", got)
	}
	if got := s.Dropped(DropInvalidGPS); got != 0 {
		t.Errorf("Dropped(invalid_gps) = %d, want 0", got)
	}
	if got := s.TotalDropped(); got != 6 {
		t.Errorf("TotalDropped = %d, want 6", got)
	}
}

func TestRunSummaryString(t *testing.T) {
	s := NewRunSummary("test-loader", "/data/file.csv")
	s.RowsRead = 10
	s.Drop(DropDuplicates, 2)
	s.Write = WriteStats{Attempted: 8, Inserted: 6, Updated: 1, SkippedUnchanged: 1}

	out := s.String()
	for _, want := range []string{
		"=== test-loader Upload Summary ===",
		"Dropped (duplicates): 2",
		"Rows attempted to write:      8",
		"Inserted (new):               6",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	s.LedgerSkipped = true
	if !strings.Contains(s.String(), "content hash already ingested") {
		t.Error("ledger-skipped summary missing skip line")
	}
}

func TestWriteStats(t *testing.T) {
	s := WriteStats{Attempted: 3, Inserted: 1, Updated: 1, SkippedUnchanged: 1}
	if !s.Consistent() {
		t.Error("consistent stats reported inconsistent")
	}
	s.Add(WriteStats{Attempted: 2, Inserted: 2})
	want := WriteStats{Attempted: 5, Inserted: 3, Updated: 1, SkippedUnchanged: 1}
	if s != want {
		t.Errorf("Add = %+v, want %+v", s, want)
	}
	if (WriteStats{Attempted: 2, Inserted: 1}).Consistent() {
		t.Error("inconsistent stats reported consistent")
	}
}
