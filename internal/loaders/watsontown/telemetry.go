package watsontown

import (
	"context"
	"fmt"
	"strings"

	"zev_ingest/internal/correct"
	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/resolve"
	"zev_ingest/internal/sourcefile"
)

type telemetryLoader struct{}

func (telemetryLoader) Name() string      { return "watsontown-telemetry" }
func (telemetryLoader) FleetName() string { return FleetName }
func (telemetryLoader) Dataset() string   { return "telemetry" }

func (telemetryLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "fuel path")
}

var telemetrySpecs = []headers.Spec{
	{Field: "vehicle", Patterns: []string{"Asset No."}},
	{Field: "date", Patterns: []string{"Date"}},
	{Field: "speed", Patterns: []string{"Speed(MPH)"}},
	{Field: "mileage", Patterns: []string{"Distance Traveled(Miles)"}},
	{Field: "lat", Patterns: []string{"Lat"}},
	{Field: "lon", Patterns: []string{"Lon"}},
}

func (l telemetryLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := resolve.Fleet(ctx, env.Store, FleetName, resolve.Open, nil, nil)
	if err != nil {
		return nil, err
	}
	t := f.First()
	if t == nil {
		return nil, fmt.Errorf("%s: empty file", f.Path)
	}
	m, err := headers.Resolve(t.Columns, telemetrySpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	// The clock column is named after the zone in force at export time,
	// "Time(EST)" or "Time(EDT)", so it is matched by prefix.
	timeCol, ok := headers.FindPrefix(t.Columns, "time(")
	if !ok {
		return nil, fmt.Errorf(`%s: no "Time(...)" column`, f.Path)
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	pts := make([]fleet.TelemetryPoint, 0, len(t.Rows))
	for _, row := range t.Rows {
		var clock string
		if timeCol < len(row) {
			clock = row[timeCol]
		}
		ts, reason := normalize.LocalTimeUTC(m.Cell(row, "date")+" "+clock, eastern)
		if ts == nil {
			if reason == normalize.TimeAmbiguous {
				s.Drop(fleet.DropAmbiguousTimestamp, 1)
			} else {
				s.Drop(fleet.DropMissingTimestamp, 1)
			}
			continue
		}
		vehID, ok := ident.Vehicles[strings.TrimSpace(m.Cell(row, "vehicle"))]
		if !ok {
			s.Drop(fleet.DropNoVehicleMatch, 1)
			continue
		}
		pts = append(pts, fleet.TelemetryPoint{
			VehicleID: vehID,
			Timestamp: *ts,
			Latitude:  normalize.Float(m.Cell(row, "lat")),
			Longitude: normalize.Float(m.Cell(row, "lon")),
			Speed:     normalize.Float(m.Cell(row, "speed")),
			Mileage:   normalize.Float(m.Cell(row, "mileage")),
		})
	}

	loaders.SortTelemetry(pts)
	pts, dups := loaders.DedupTelemetry(pts)
	s.Drop(fleet.DropDuplicates, dups)

	if err := env.ArchiveTelemetry(ctx, FleetName, pts); err != nil {
		return nil, err
	}

	nullGPSJumps(pts, env.Correct.GPSMaxJumpMiles, s)
	if err := rebuildMileage(ctx, env, pts); err != nil {
		return nil, err
	}

	st, err := env.Store.UpsertTelemetry(ctx, pts)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}

// nullGPSJumps blanks the coordinates of jump-cluster outliers per vehicle.
// The rows stay; speed and mileage are still good even when the fix is not.
func nullGPSJumps(pts []fleet.TelemetryPoint, maxJumpMiles float64, s *fleet.RunSummary) {
	nulled := 0
	loaders.EachVehicle(pts, func(lo, hi int) error {
		gps := make([]correct.GPSPoint, hi-lo)
		for i := lo; i < hi; i++ {
			gps[i-lo] = correct.GPSPoint{
				Timestamp: pts[i].Timestamp,
				Latitude:  pts[i].Latitude,
				Longitude: pts[i].Longitude,
			}
		}
		for i, bad := range correct.FlagGPSJumps(gps, maxJumpMiles) {
			if bad {
				pts[lo+i].Latitude = nil
				pts[lo+i].Longitude = nil
				nulled++
			}
		}
		return nil
	})
	s.Corrected(fleet.CorrectGPSOutlierNulled, nulled)
}

// rebuildMileage turns each vehicle's reset-prone odometer column into a
// monotonic series and anchors it to the last reading already stored, so a
// file re-covering an old window lands on the same absolute values.
func rebuildMileage(ctx context.Context, env *loaders.Env, pts []fleet.TelemetryPoint) error {
	return loaders.EachVehicle(pts, func(lo, hi int) error {
		vals := make([]*float64, hi-lo)
		for i := lo; i < hi; i++ {
			vals[i-lo] = pts[i].Mileage
		}
		rebuilt := correct.RebuildMonotonic(vals)

		anchor, err := env.Store.LastMileageBefore(ctx, pts[lo].VehicleID, pts[lo].Timestamp)
		if err != nil {
			return err
		}
		if anchor != nil && len(rebuilt) > 0 && rebuilt[0] != nil {
			correct.Shift(rebuilt, *anchor-*rebuilt[0])
		}
		for i := lo; i < hi; i++ {
			pts[i].Mileage = rebuilt[i-lo]
		}
		return nil
	})
}
