// Package ledger tracks which source files have already been ingested, keyed
// by absolute path and whole-file content hash. It is advisory only: losing
// or corrupting the ledger degrades to "process everything", and the upsert
// writers keep double-processing harmless at the row level.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Ledger is the in-memory path->hash map backed by one JSON file.
type Ledger struct {
	path    string
	entries map[string]string
}

// Load reads the ledger file. A missing or unreadable file yields an empty
// ledger rather than an error; reprocessing is always safe, silent data loss
// is not.
func Load(path string) *Ledger {
	l := &Ledger{path: path, entries: map[string]string{}}
	b, err := os.ReadFile(path)
	if err != nil {
		return l
	}
	if err := json.Unmarshal(b, &l.entries); err != nil {
		l.entries = map[string]string{}
	}
	return l
}

// AlreadyIngested reports whether this exact file content was processed before.
func (l *Ledger) AlreadyIngested(filePath, hash string) bool {
	return l.entries[filePath] == hash
}

// RecordIngestion remembers the file's hash and rewrites the ledger
// atomically (temp file + rename) so a crash can't leave a half-written map.
// Only the hash is persisted: the skip-or-process decision needs nothing
// else. rowsWritten is not stored; per-run row counts live in the operator
// summaries.
func (l *Ledger) RecordIngestion(filePath, hash string, rowsWritten int) error {
	l.entries[filePath] = hash

	b, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Len returns the number of recorded files.
func (l *Ledger) Len() int { return len(l.entries) }
