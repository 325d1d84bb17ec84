// Package sourcefile reads vendor exports (CSV and Excel workbooks) into
// uniform string tables and computes the content hash the ingestion ledger
// keys on. Cell interpretation is left to the loaders; everything here is
// verbatim text.
package sourcefile

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is one sheet (or the single CSV body) with its header row split off.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// File is one source file ready for a loader.
type File struct {
	Path   string
	Hash   string // md5 of the raw bytes; any byte change forces reprocessing
	Tables []Table
}

// Sheet returns the named table, or nil. Matching ignores case and
// surrounding whitespace.
func (f *File) Sheet(name string) *Table {
	want := strings.ToLower(strings.TrimSpace(name))
	for i := range f.Tables {
		if strings.ToLower(strings.TrimSpace(f.Tables[i].Name)) == want {
			return &f.Tables[i]
		}
	}
	return nil
}

// First returns the first table, or nil for an empty file.
func (f *File) First() *Table {
	if len(f.Tables) == 0 {
		return nil
	}
	return &f.Tables[0]
}

// HashFile computes the whole-file md5 digest as lowercase hex.
func HashFile(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer fh.Close()
	h := md5.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Read loads a source file by extension (.csv, .xlsx, .xls, .xlsm).
func Read(path string) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx", ".xls", ".xlsm":
		return ReadWorkbook(path)
	default:
		return nil, fmt.Errorf("unsupported source file type: %s", path)
	}
}

// ReadCSV loads a CSV export as a single table named after the file.
func ReadCSV(path string) (*File, error) {
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1 // vendor CSVs are frequently ragged
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	t := Table{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	if len(records) > 0 {
		t.Columns = records[0]
		t.Rows = records[1:]
	}
	return &File{Path: path, Hash: hash, Tables: []Table{t}}, nil
}

// ReadWorkbook loads every sheet of an Excel workbook.
func ReadWorkbook(path string) (*File, error) {
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer wb.Close()

	out := &File{Path: path, Hash: hash}
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s of %s: %w", sheet, path, err)
		}
		t := Table{Name: sheet}
		if len(rows) > 0 {
			t.Columns = rows[0]
			t.Rows = rows[1:]
		}
		out.Tables = append(out.Tables, t)
	}
	return out, nil
}
