package freight

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/sourcefile"
)

type telemetryLoader struct{}

func (telemetryLoader) Name() string      { return "freight-telemetry" }
func (telemetryLoader) FleetName() string { return FleetName }
func (telemetryLoader) Dataset() string   { return "telemetry" }

// Match accepts the per-vehicle CSV exports, which are named by tractor code
// ("DSE175.csv").
func (telemetryLoader) Match(filename string) bool {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return false
	}
	return whitelisted[vehicleFromFilename(filename)]
}

func vehicleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

var telemetrySpecs = []headers.Spec{
	{Field: "timestamp", Patterns: []string{"timeStamp"}},
	{Field: "latitude", Patterns: []string{"latitude"}},
	{Field: "longitude", Patterns: []string{"longitude"}},
	{Field: "speed", Patterns: []string{"speed"}},
	{Field: "odometer", Patterns: []string{"odometer"}},
	{Field: "soc", Patterns: []string{"stateOfCharge"}},
	{Field: "keyon", Patterns: []string{"keyOnTime"}},
}

func (l telemetryLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := identity(ctx, env, false)
	if err != nil {
		return nil, err
	}
	code := vehicleFromFilename(f.Path)
	vehID, ok := ident.Vehicles[code]
	if !ok {
		return nil, fmt.Errorf("%s: file is not named after a pilot tractor", f.Path)
	}
	t := f.First()
	if t == nil {
		return nil, fmt.Errorf("%s: empty file", f.Path)
	}
	m, err := headers.Resolve(t.Columns, telemetrySpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	pts := make([]fleet.TelemetryPoint, 0, len(t.Rows))
	for _, row := range t.Rows {
		// This vendor exports UTC timestamps, offset-suffixed or bare.
		ts, _ := normalize.LocalTimeUTC(m.Cell(row, "timestamp"), time.UTC)
		if ts == nil {
			s.Drop(fleet.DropMissingTimestamp, 1)
			continue
		}
		pts = append(pts, fleet.TelemetryPoint{
			VehicleID: vehID,
			Timestamp: *ts,
			Latitude:  normalize.Float(m.Cell(row, "latitude")),
			Longitude: normalize.Float(m.Cell(row, "longitude")),
			Speed:     normalize.Float(m.Cell(row, "speed")),
			Mileage:   normalize.Float(m.Cell(row, "odometer")),
			SOC:       normalize.Fraction(m.Cell(row, "soc")),
			KeyOnTime: normalize.Float(m.Cell(row, "keyon")),
		})
	}

	if err := env.ArchiveTelemetry(ctx, FleetName, pts); err != nil {
		return nil, err
	}

	loaders.SortTelemetry(pts)
	pts, dups := loaders.DedupTelemetry(pts)
	s.Drop(fleet.DropDuplicates, dups)

	st, err := env.Store.UpsertTelemetry(ctx, pts)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}
