// Package sqtrucking ingests the SQ Trucking portal export, a sparse daily
// usage workbook. The portal reports no odometer, trip or payload figures,
// so only the columns it actually carries are written.
package sqtrucking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/resolve"
	"zev_ingest/internal/sourcefile"
	"zev_ingest/internal/storage"
)

// FleetName is the display name the fleet is provisioned under.
const FleetName = "SQ Trucking"

func init() {
	loaders.Register(dailyLoader{})
}

type dailyLoader struct{}

func (dailyLoader) Name() string      { return "sqtrucking-daily" }
func (dailyLoader) FleetName() string { return FleetName }
func (dailyLoader) Dataset() string   { return "daily" }

func (dailyLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "sq trucking")
}

var dailySpecs = []headers.Spec{
	{Field: "vehicle", Patterns: []string{"Nickname"}},
	{Field: "date", Patterns: []string{"Date"}},
	{Field: "dist", Patterns: []string{"Distance Driven"}},
	{Field: "dura", Patterns: []string{"Time In Service"}},
	{Field: "socUsed", Patterns: []string{"SOC Used"}},
	{Field: "energy", Patterns: []string{"Energy Used"}},
}

func (l dailyLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := resolve.Fleet(ctx, env.Store, FleetName, resolve.Open, nil, nil)
	if err != nil {
		return nil, err
	}
	t := f.First()
	if t == nil {
		return nil, fmt.Errorf("%s: workbook has no data sheet", f.Path)
	}
	m, err := headers.Resolve(t.Columns, dailySpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	// The portal labels trucks freely ("Truck #12"); the roster keys on the
	// bare unit number.
	type key struct {
		vehID int64
		date  time.Time
	}
	seen := map[key]int{}

	rows := make([]fleet.DailyUsage, 0, len(t.Rows))
	for _, row := range t.Rows {
		vehID, ok := ident.Vehicles[normalize.Digits(m.Cell(row, "vehicle"))]
		if !ok {
			s.Drop(fleet.DropNoVehicleMatch, 1)
			continue
		}
		date := normalize.ParseDate(m.Cell(row, "date"))
		if date == nil {
			s.Drop(fleet.DropUnusableRow, 1)
			continue
		}
		d := fleet.DailyUsage{
			VehicleID:  vehID,
			Date:       *date,
			TotDist:    normalize.Float(m.Cell(row, "dist")),
			TotDura:    normalize.Float(m.Cell(row, "dura")),
			TotSOCUsed: normalize.Fraction(m.Cell(row, "socUsed")),
			TotEnergy:  normalize.Float(m.Cell(row, "energy")),
		}
		// Later lines for the same day replace earlier ones.
		if i, dup := seen[key{vehID, *date}]; dup {
			rows[i] = d
			s.Drop(fleet.DropDuplicates, 1)
			continue
		}
		seen[key{vehID, *date}] = len(rows)
		rows = append(rows, d)
	}

	st, err := env.Store.UpsertDailyUsage(ctx, rows, storage.DailyDirect)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}
