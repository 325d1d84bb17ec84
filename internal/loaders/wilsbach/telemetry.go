package wilsbach

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

func (telemetryLoader) Name() string      { return "wilsbach-telemetry" }
func (telemetryLoader) FleetName() string { return FleetName }
func (telemetryLoader) Dataset() string   { return "telemetry" }

func (telemetryLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "telematics")
}

var telemetrySpecs = []headers.Spec{
	{Field: "vehicle", Patterns: []string{"Vehicle ID"}},
	{Field: "timestamp", Patterns: []string{"Data Timestamp"}},
	{Field: "speed", Patterns: []string{"Speed"}},
	{Field: "odometer", Patterns: []string{"Odometer"}},
	{Field: "latitude", Patterns: []string{"Latitude"}},
	{Field: "longitude", Patterns: []string{"Longitude"}},
	{Field: "elevation", Patterns: []string{"Elevation"}},
	{Field: "soc", Patterns: []string{"State Of Charge"}},
	{Field: "keyon", Patterns: []string{"~total travel time"}, Optional: true},
}

func (l telemetryLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := resolve.Fleet(ctx, env.Store, FleetName, resolve.Open, nil, nil)
	if err != nil {
		return nil, err
	}
	t := f.First()
	if t == nil {
		return nil, fmt.Errorf("%s: workbook has no data sheet", f.Path)
	}
	m, err := headers.Resolve(t.Columns, telemetrySpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	pts := make([]fleet.TelemetryPoint, 0, len(t.Rows))
	for _, row := range t.Rows {
		ts, reason := normalize.LocalTimeUTC(m.Cell(row, "timestamp"), eastern)
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
		p := fleet.TelemetryPoint{
			VehicleID: vehID,
			Timestamp: *ts,
			Latitude:  normalize.Float(m.Cell(row, "latitude")),
			Longitude: normalize.Float(m.Cell(row, "longitude")),
			Speed:     normalize.Float(m.Cell(row, "speed")),
			Mileage:   normalize.Float(m.Cell(row, "odometer")),
			Elevation: normalize.Float(m.Cell(row, "elevation")),
			KeyOnTime: normalize.Float(m.Cell(row, "keyon")),
		}
		// The vendor reports SOC as a 0-100 percentage. Divide first so the
		// range check below still catches impossible raw values.
		if soc := normalize.Float(m.Cell(row, "soc")); soc != nil {
			v := normalize.Round(*soc/100.0, 4)
			p.SOC = &v
		}
		pts = append(pts, p)
	}

	if err := env.ArchiveTelemetry(ctx, FleetName, pts); err != nil {
		return nil, err
	}

	loaders.SortTelemetry(pts)
	pts = repairDoubling(pts, env.Correct.DoubleTolerance, s)
	pts = dropInvalid(pts, s)
	pts, dups := loaders.DedupTelemetry(pts)
	s.Drop(fleet.DropDuplicates, dups)

	st, err := env.Store.UpsertTelemetry(ctx, pts)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}

// repairDoubling walks each vehicle's sorted odometer sequence, halving
// readings that doubled against the previous sample and dropping rows whose
// reading regressed beyond tolerance.
func repairDoubling(pts []fleet.TelemetryPoint, tol float64, s *fleet.RunSummary) []fleet.TelemetryPoint {
	out := pts[:0]
	var cc *correct.CounterCorrector
	var cur int64
	for i := range pts {
		p := pts[i]
		if cc == nil || p.VehicleID != cur {
			cc = &correct.CounterCorrector{Tolerance: tol}
			cur = p.VehicleID
		}
		if p.Mileage != nil {
			v, act := cc.Accept(*p.Mileage)
			switch act {
			case correct.Reject:
				s.Drop(fleet.DropMileageRegression, 1)
				continue
			case correct.Halved:
				s.Corrected(fleet.CorrectMileageHalved, 1)
			}
			p.Mileage = &v
		}
		out = append(out, p)
	}
	return out
}

func dropInvalid(pts []fleet.TelemetryPoint, s *fleet.RunSummary) []fleet.TelemetryPoint {
	out := pts[:0]
	for _, p := range pts {
		switch {
		case outOfRange(p.Latitude, -90, 90) || outOfRange(p.Longitude, -180, 180):
			s.Drop(fleet.DropInvalidGPS, 1)
		case p.Speed != nil && *p.Speed < 0:
			s.Drop(fleet.DropBadSpeed, 1)
		case outOfRange(p.SOC, 0, 1):
			s.Drop(fleet.DropBadSOC, 1)
		default:
			out = append(out, p)
		}
	}
	return out
}

// outOfRange is false for missing values; absence is not invalidity.
func outOfRange(v *float64, lo, hi float64) bool {
	return v != nil && (*v < lo || *v > hi)
}
