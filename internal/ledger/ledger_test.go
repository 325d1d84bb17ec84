package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")

	l := Load(path)
	if l.Len() != 0 {
		t.Fatalf("fresh ledger Len = %d, want 0", l.Len())
	}
	if l.AlreadyIngested("/data/a.xlsx", "abc123") {
		t.Error("empty ledger claims a file was ingested")
	}

	if err := l.RecordIngestion("/data/a.xlsx", "abc123", 42); err != nil {
		t.Fatalf("RecordIngestion: %v", err)
	}
	if !l.AlreadyIngested("/data/a.xlsx", "abc123") {
		t.Error("recorded file not reported as ingested")
	}

	// A fresh load from disk sees the same entry.
	l2 := Load(path)
	if !l2.AlreadyIngested("/data/a.xlsx", "abc123") {
		t.Error("reloaded ledger lost the entry")
	}
	if l2.Len() != 1 {
		t.Errorf("reloaded Len = %d, want 1", l2.Len())
	}
}

func TestContentChangeReprocesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	l := Load(path)
	if err := l.RecordIngestion("/data/a.xlsx", "abc123", 10); err != nil {
		t.Fatalf("RecordIngestion: %v", err)
	}

	// Same path, different bytes: must be processed again.
	if l.AlreadyIngested("/data/a.xlsx", "def456") {
		t.Error("changed content reported as already ingested")
	}

	// Recording the new hash replaces the old one.
	if err := l.RecordIngestion("/data/a.xlsx", "def456", 10); err != nil {
		t.Fatalf("RecordIngestion: %v", err)
	}
	if l.AlreadyIngested("/data/a.xlsx", "abc123") {
		t.Error("stale hash still reported as ingested")
	}
	if !l.AlreadyIngested("/data/a.xlsx", "def456") {
		t.Error("new hash not recorded")
	}
}

func TestCorruptLedgerDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := Load(path)
	if l.Len() != 0 {
		t.Errorf("corrupt ledger Len = %d, want 0", l.Len())
	}
	// Still writable after corruption.
	if err := l.RecordIngestion("/data/b.csv", "fff", 1); err != nil {
		t.Fatalf("RecordIngestion after corruption: %v", err)
	}
	if !Load(path).AlreadyIngested("/data/b.csv", "fff") {
		t.Error("entry recorded over a corrupt ledger was lost")
	}
}
