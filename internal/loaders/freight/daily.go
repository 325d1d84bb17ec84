package freight

import (
	"context"
	"fmt"
	"math"
	"strings"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/sourcefile"
	"zev_ingest/internal/storage"
)

type dailyLoader struct{}

func (dailyLoader) Name() string      { return "freight-daily" }
func (dailyLoader) FleetName() string { return FleetName }
func (dailyLoader) Dataset() string   { return "daily" }

func (dailyLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "ao_daily")
}

var dailySpecs = []headers.Spec{
	{Field: "date", Patterns: []string{"Day"}},
	{Field: "trips", Patterns: []string{"Total Trips in Day"}},
	{Field: "initOdo", Patterns: []string{"Initial Odometer Reading"}},
	{Field: "finalOdo", Patterns: []string{"Final Odometer Reading"}},
	{Field: "dist", Patterns: []string{"~total daily distance driven"}},
	{Field: "dura", Patterns: []string{"~total daily drive duration"}},
	{Field: "idle", Patterns: []string{"~idle time"}},
	{Field: "initSOC", Patterns: []string{"Initial SOC"}},
	{Field: "finalSOC", Patterns: []string{"Final SOC"}},
	{Field: "socUsed", Patterns: []string{"Total SOC Used"}},
	{Field: "energy", Patterns: []string{"~total energy consumed"}},
}

// Load walks the workbook's per-tractor sheets. The layout buries the real
// header under two banner rows, so each sheet is rebased before resolution.
func (l dailyLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := identity(ctx, env, false)
	if err != nil {
		return nil, err
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)

	var rows []fleet.DailyUsage
	for _, t := range f.Tables {
		code := strings.ToUpper(strings.TrimSpace(t.Name))
		if !whitelisted[code] {
			continue
		}
		vehID, ok := ident.Vehicles[code]
		if !ok {
			return nil, fmt.Errorf("%s: sheet %s has no provisioned vehicle", f.Path, t.Name)
		}

		cols, data := rebase(t)
		if cols == nil {
			continue
		}
		m, err := headers.Resolve(cols, dailySpecs)
		if err != nil {
			return nil, fmt.Errorf("%s sheet %s: %w", f.Path, t.Name, err)
		}

		s.RowsRead += len(data)
		for _, row := range data {
			dayCell := m.Cell(row, "date")
			if strings.EqualFold(dayCell, "grand total") {
				s.Drop(fleet.DropUnusableRow, 1)
				continue
			}
			date := normalize.ParseDate(dayCell)
			if date == nil {
				s.Drop(fleet.DropUnusableRow, 1)
				continue
			}

			d := fleet.DailyUsage{
				VehicleID:  vehID,
				Date:       *date,
				TripNum:    normalize.Int(m.Cell(row, "trips")),
				InitOdo:    normalize.Float(m.Cell(row, "initOdo")),
				FinalOdo:   normalize.Float(m.Cell(row, "finalOdo")),
				TotDura:    normalize.MinutesToHours(m.Cell(row, "dura")),
				IdleTime:   normalize.MinutesToHours(m.Cell(row, "idle")),
				InitSOC:    normalize.Fraction(m.Cell(row, "initSOC")),
				FinalSOC:   normalize.Fraction(m.Cell(row, "finalSOC")),
				TotSOCUsed: normalize.Fraction(m.Cell(row, "socUsed")),
			}
			if v := normalize.Float(m.Cell(row, "dist")); v != nil {
				r := normalize.Round(*v, 2)
				d.TotDist = &r
			}
			if v := normalize.Float(m.Cell(row, "energy")); v != nil {
				r := math.Round(*v)
				d.TotEnergy = &r
			}
			rows = append(rows, d)
		}
	}

	st, err := env.Store.UpsertDailyUsage(ctx, rows, storage.DailyDirect)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}

// rebase skips the banner rows: the third sheet row is the header, the rest
// is data. Nil columns means the sheet is too short to hold any.
func rebase(t sourcefile.Table) ([]string, [][]string) {
	if len(t.Rows) < 2 {
		return nil, nil
	}
	return t.Rows[1], t.Rows[2:]
}
