package headers

import (
	"strings"
	"testing"
)

func TestResolveExactAndFuzzy(t *testing.T) {
	columns := []string{
		"Vehicle ID",
		"(6) Total Daily\nDistance Driven (miles)",
		"Total Travel Time (Hrs)",
	}
	specs := []Spec{
		{Field: "vehicle", Patterns: []string{"Vehicle ID"}},
		{Field: "dist", Patterns: []string{"~total daily distance driven"}},
		{Field: "dura", Patterns: []string{"Total Travel Time (Hrs)", "Total Travel Time"}},
	}
	m, err := Resolve(columns, specs)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	row := []string{"DSE175", "42.5", "3.1"}
	if got := m.Cell(row, "vehicle"); got != "DSE175" {
		t.Errorf("vehicle = %q, want %q", got, "DSE175")
	}
	if got := m.Cell(row, "dist"); got != "42.5" {
		t.Errorf("dist = %q, want %q", got, "42.5")
	}
	if got := m.Cell(row, "dura"); got != "3.1" {
		t.Errorf("dura = %q, want %q", got, "3.1")
	}
}

func TestResolveCaseAndWhitespace(t *testing.T) {
	m, err := Resolve([]string{"  vehicle   id  "}, []Spec{
		{Field: "vehicle", Patterns: []string{"Vehicle ID"}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !m.Has("vehicle") {
		t.Error("vehicle did not resolve against noisy header")
	}
}

func TestResolveReportsAllMissing(t *testing.T) {
	_, err := Resolve([]string{"Unrelated"}, []Spec{
		{Field: "vehicle", Patterns: []string{"Vehicle ID"}},
		{Field: "date", Patterns: []string{"Date"}},
		{Field: "note", Patterns: []string{"Note"}, Optional: true},
	})
	if err == nil {
		t.Fatal("Resolve succeeded with missing required columns")
	}
	msg := err.Error()
	if !strings.Contains(msg, "vehicle") || !strings.Contains(msg, "date") {
		t.Errorf("error %q should name both unresolved fields", msg)
	}
	if strings.Contains(msg, "note") {
		t.Errorf("error %q should not name the optional field", msg)
	}
}

func TestCellRaggedRow(t *testing.T) {
	m, err := Resolve([]string{"A", "B", "C"}, []Spec{
		{Field: "c", Patterns: []string{"C"}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := m.Cell([]string{"only"}, "c"); got != "" {
		t.Errorf("Cell on ragged row = %q, want empty", got)
	}
	if got := m.Cell([]string{"x", "y", "z"}, "missing"); got != "" {
		t.Errorf("Cell on unknown field = %q, want empty", got)
	}
}

func TestFindPrefix(t *testing.T) {
	columns := []string{"Date", "Time(EDT)", "Speed(MPH)"}
	idx, ok := FindPrefix(columns, "time(")
	if !ok || idx != 1 {
		t.Errorf("FindPrefix = %d, %v, want 1, true", idx, ok)
	}
	if _, ok := FindPrefix(columns, "odometer"); ok {
		t.Error("FindPrefix matched a prefix that is not present")
	}
}
