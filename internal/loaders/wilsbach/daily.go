package wilsbach

import (
	"context"
	"fmt"
	"sort"
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

type dailyLoader struct{}

func (dailyLoader) Name() string      { return "wilsbach-daily" }
func (dailyLoader) FleetName() string { return FleetName }
func (dailyLoader) Dataset() string   { return "daily" }

func (dailyLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "daily usage")
}

var dailySpecs = []headers.Spec{
	{Field: "vehicle", Patterns: []string{"Vehicle ID"}},
	{Field: "date", Patterns: []string{"Date"}},
	{Field: "trip", Patterns: []string{"Trip Nbr"}},
	{Field: "initOdo", Patterns: []string{"Start Odometer"}},
	{Field: "finalOdo", Patterns: []string{"End Odometer"}},
	{Field: "dist", Patterns: []string{"Distance Traveled"}},
	{Field: "dura", Patterns: []string{"Total Travel Time (Hrs)", "Total Travel Time"}},
	{Field: "idle", Patterns: []string{"Total Idle Time (Hrs)", "Total Idle Time"}},
	{Field: "initSOC", Patterns: []string{"Initial SOC"}},
	{Field: "finalSOC", Patterns: []string{"Final SOC"}},
	{Field: "socUsed", Patterns: []string{"% Used", "SOC Used"}},
	{Field: "energy", Patterns: []string{"Calc kWHh Used"}},
}

// tripRow is one per-trip line before the per-day rollup.
type tripRow struct {
	vehID int64
	date  time.Time
	trip  *float64

	initOdo, finalOdo          *float64
	dist, dura, idle           *float64
	initSOC, finalSOC, socUsed *float64
	energy                     *float64
}

func (l dailyLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := resolve.Fleet(ctx, env.Store, FleetName, resolve.Open, nil, nil)
	if err != nil {
		return nil, err
	}
	t := f.Sheet("Daily Summary")
	if t == nil {
		return nil, fmt.Errorf(`%s: sheet "Daily Summary" not found`, f.Path)
	}
	m, err := headers.Resolve(t.Columns, dailySpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	trips := make([]tripRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		date := normalize.ParseDate(m.Cell(row, "date"))
		if date == nil {
			s.Drop(fleet.DropUnusableRow, 1)
			continue
		}
		vehID, ok := ident.Vehicles[strings.TrimSpace(m.Cell(row, "vehicle"))]
		if !ok {
			s.Drop(fleet.DropNoVehicleMatch, 1)
			continue
		}
		trips = append(trips, tripRow{
			vehID:    vehID,
			date:     *date,
			trip:     normalize.Float(m.Cell(row, "trip")),
			initOdo:  normalize.Float(m.Cell(row, "initOdo")),
			finalOdo: normalize.Float(m.Cell(row, "finalOdo")),
			dist:     normalize.Float(m.Cell(row, "dist")),
			dura:     normalize.Float(m.Cell(row, "dura")),
			idle:     normalize.Float(m.Cell(row, "idle")),
			initSOC:  normalize.Fraction(m.Cell(row, "initSOC")),
			finalSOC: normalize.Fraction(m.Cell(row, "finalSOC")),
			socUsed:  normalize.Fraction(m.Cell(row, "socUsed")),
			energy:   normalize.Float(m.Cell(row, "energy")),
		})
	}

	rows := rollupDays(trips)
	st, err := env.Store.UpsertDailyUsage(ctx, rows, storage.DailyDirect)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}

// rollupDays collapses per-trip lines into one row per vehicle per day.
// Odometer and SOC boundaries come from the first and last trips of the day;
// distance, durations, SOC used and energy are summed.
func rollupDays(trips []tripRow) []fleet.DailyUsage {
	sort.SliceStable(trips, func(i, j int) bool {
		a, b := trips[i], trips[j]
		if a.vehID != b.vehID {
			return a.vehID < b.vehID
		}
		if !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		switch {
		case a.trip == nil:
			return false
		case b.trip == nil:
			return true
		default:
			return *a.trip < *b.trip
		}
	})

	var rows []fleet.DailyUsage
	lo := 0
	for i := 1; i <= len(trips); i++ {
		if i < len(trips) && trips[i].vehID == trips[lo].vehID && trips[i].date.Equal(trips[lo].date) {
			continue
		}
		rows = append(rows, rollupDay(trips[lo:i]))
		lo = i
	}
	return rows
}

func rollupDay(day []tripRow) fleet.DailyUsage {
	d := fleet.DailyUsage{VehicleID: day[0].vehID, Date: day[0].date}

	var maxTrip *float64
	for _, tr := range day {
		if tr.trip != nil && (maxTrip == nil || *tr.trip > *maxTrip) {
			maxTrip = tr.trip
		}
	}
	if maxTrip != nil {
		n := int64(*maxTrip)
		d.TripNum = &n
	}

	d.InitOdo = firstNonNil(day, func(tr tripRow) *float64 { return tr.initOdo })
	d.FinalOdo = lastNonNil(day, func(tr tripRow) *float64 { return tr.finalOdo })
	d.InitSOC = firstNonNil(day, func(tr tripRow) *float64 { return tr.initSOC })
	d.FinalSOC = lastNonNil(day, func(tr tripRow) *float64 { return tr.finalSOC })

	d.TotDist = sumRounded(day, func(tr tripRow) *float64 { return tr.dist }, 3)
	d.TotDura = sumRounded(day, func(tr tripRow) *float64 { return tr.dura }, 3)
	d.IdleTime = sumRounded(day, func(tr tripRow) *float64 { return tr.idle }, 3)
	d.TotSOCUsed = sumRounded(day, func(tr tripRow) *float64 { return tr.socUsed }, 4)
	d.TotEnergy = sumRounded(day, func(tr tripRow) *float64 { return tr.energy }, 3)
	return d
}

func firstNonNil(day []tripRow, get func(tripRow) *float64) *float64 {
	for _, tr := range day {
		if v := get(tr); v != nil {
			return v
		}
	}
	return nil
}

func lastNonNil(day []tripRow, get func(tripRow) *float64) *float64 {
	for i := len(day) - 1; i >= 0; i-- {
		if v := get(day[i]); v != nil {
			return v
		}
	}
	return nil
}

func sumRounded(day []tripRow, get func(tripRow) *float64, places int) *float64 {
	var sum float64
	for _, tr := range day {
		if v := get(tr); v != nil {
			sum += *v
		}
	}
	sum = normalize.Round(sum, places)
	return &sum
}
