// Package loaders defines the vendor loader interface and the registry the
// ingest command dispatches through. Each vendor package registers its
// loaders from init(), so importing the vendor packages is all the wiring
// there is.
package loaders

import (
	"context"

	"zev_ingest/internal/correct"
	"zev_ingest/internal/fleet"
	"zev_ingest/internal/ledger"
	"zev_ingest/internal/sourcefile"
	"zev_ingest/internal/storage"
)

// Env carries the shared services a loader runs against.
type Env struct {
	Store   storage.Store
	Archive *storage.Archive // nil disables raw archiving
	Ledger  *ledger.Ledger
	Correct correct.Config
}

// Loader ingests one vendor file format for one fleet.
type Loader interface {
	// Name is the registry key, e.g. "wilsbach-telemetry".
	Name() string
	// FleetName is the display name resolved against the fleet table.
	FleetName() string
	// Dataset names what the loader produces: telemetry, charging, daily
	// or maintenance.
	Dataset() string
	// Match reports whether the file name looks like this loader's format.
	Match(filename string) bool
	// Load ingests one already-read file end to end and reports the run
	// accounting. Errors abort the file; nothing partial is committed.
	Load(ctx context.Context, env *Env, f *sourcefile.File) (*fleet.RunSummary, error)
}
