// Package headers resolves vendor-varying spreadsheet column names against a
// declarative mapping table. Each canonical field lists the header patterns it
// accepts; resolution happens once per file and fails hard, naming every
// unresolved field, so a renamed vendor column cannot silently drop data.
package headers

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec declares one canonical field and the headers that may carry it.
// A pattern matches a column when the normalized column equals the normalized
// pattern, or when the column contains every whitespace-separated term of a
// pattern prefixed with "~" (fuzzy form, for vendors whose headers embed
// instructions and line breaks).
type Spec struct {
	Field    string
	Patterns []string
	Optional bool
}

// Mapping maps canonical field names to column indices in the source table.
type Mapping map[string]int

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace/newlines and lowercases a header cell.
func Normalize(s string) string {
	return strings.ToLower(spaceRe.ReplaceAllString(strings.TrimSpace(s), " "))
}

// Resolve matches specs against the table's columns. Unresolved non-optional
// fields produce a single error listing all of them with their patterns.
func Resolve(columns []string, specs []Spec) (Mapping, error) {
	norm := make([]string, len(columns))
	for i, c := range columns {
		norm[i] = Normalize(c)
	}

	out := make(Mapping, len(specs))
	var missing []string
	for _, sp := range specs {
		idx := -1
	patterns:
		for _, pat := range sp.Patterns {
			if fuzzy, ok := strings.CutPrefix(pat, "~"); ok {
				terms := strings.Fields(Normalize(fuzzy))
				for i, c := range norm {
					if containsAll(c, terms) {
						idx = i
						break patterns
					}
				}
				continue
			}
			want := Normalize(pat)
			for i, c := range norm {
				if c == want {
					idx = i
					break patterns
				}
			}
		}
		if idx < 0 {
			if !sp.Optional {
				missing = append(missing, fmt.Sprintf("%s (accepts %s)", sp.Field, strings.Join(sp.Patterns, " | ")))
			}
			continue
		}
		out[sp.Field] = idx
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved columns: %s", strings.Join(missing, "; "))
	}
	return out, nil
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return len(terms) > 0
}

// Cell returns the mapped cell value for a row, "" when the field is absent
// or the row is ragged (vendor sheets often truncate trailing empty cells).
func (m Mapping) Cell(row []string, field string) string {
	i, ok := m[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Has reports whether an optional field resolved.
func (m Mapping) Has(field string) bool {
	_, ok := m[field]
	return ok
}

// FindPrefix returns the first column whose normalized name starts with the
// given prefix, for vendors that encode metadata in the header itself
// (e.g. "Time(EST)" vs "Time(EDT)").
func FindPrefix(columns []string, prefix string) (int, bool) {
	p := Normalize(prefix)
	for i, c := range columns {
		if strings.HasPrefix(Normalize(c), p) {
			return i, true
		}
	}
	return -1, false
}
