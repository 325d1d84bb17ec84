package loaders

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/sourcefile"
)

var (
	mu     sync.RWMutex
	byName = map[string]Loader{}
)

// Register adds a loader to the registry. Called from vendor package init();
// duplicate names are a programming error and panic at startup.
func Register(l Loader) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := byName[l.Name()]; dup {
		panic(fmt.Sprintf("loaders: duplicate loader name %q", l.Name()))
	}
	byName[l.Name()] = l
}

// Find returns the loader registered under name, or nil.
func Find(name string) Loader {
	mu.RLock()
	defer mu.RUnlock()
	return byName[name]
}

// All returns every registered loader sorted by name.
func All() []Loader {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Loader, 0, len(byName))
	for _, l := range byName {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// MatchFile returns the single loader whose Match accepts the file name.
// No match or more than one match is an error; silently guessing a vendor
// format corrupts data.
func MatchFile(path string) (Loader, error) {
	base := filepath.Base(path)
	var hits []Loader
	for _, l := range All() {
		if l.Match(base) {
			hits = append(hits, l)
		}
	}
	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("no loader matches %s; use -loader to pick one", base)
	case 1:
		return hits[0], nil
	default:
		names := make([]string, len(hits))
		for i, l := range hits {
			names[i] = l.Name()
		}
		return nil, fmt.Errorf("ambiguous file %s matches loaders %v; use -loader", base, names)
	}
}

// Ingest runs the whole per-file flow: ledger check, read, load, ledger
// record. loaderName may be empty to autodetect from the file name.
func Ingest(ctx context.Context, env *Env, loaderName, path string) (*fleet.RunSummary, error) {
	var l Loader
	if loaderName != "" {
		if l = Find(loaderName); l == nil {
			return nil, fmt.Errorf("unknown loader: %s", loaderName)
		}
	} else {
		var err error
		if l, err = MatchFile(path); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	hash, err := sourcefile.HashFile(abs)
	if err != nil {
		return nil, err
	}
	if env.Ledger != nil && env.Ledger.AlreadyIngested(abs, hash) {
		s := fleet.NewRunSummary(l.Name(), abs)
		s.LedgerSkipped = true
		return s, nil
	}

	f, err := sourcefile.Read(abs)
	if err != nil {
		return nil, err
	}

	s, err := l.Load(ctx, env, f)
	if err != nil {
		return nil, err
	}
	if !s.Write.Consistent() {
		return nil, fmt.Errorf("loader %s: write accounting inconsistent: %+v", l.Name(), s.Write)
	}

	if env.Ledger != nil {
		if err := env.Ledger.RecordIngestion(abs, hash, s.Write.Inserted+s.Write.Updated); err != nil {
			return nil, err
		}
	}
	return s, nil
}
