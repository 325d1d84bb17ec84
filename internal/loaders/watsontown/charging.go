package watsontown

import (
	"context"
	"fmt"
	"strings"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/resolve"
	"zev_ingest/internal/sourcefile"
)

type chargingLoader struct{}

func (chargingLoader) Name() string      { return "watsontown-charging" }
func (chargingLoader) FleetName() string { return FleetName }
func (chargingLoader) Dataset() string   { return "charging" }

func (chargingLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "charge log")
}

var chargingSpecs = []headers.Spec{
	{Field: "serial", Patterns: []string{"Serial Number"}},
	{Field: "connector", Patterns: []string{"Connector Number"}},
	{Field: "tractorID", Patterns: []string{"Tractor ID"}, Optional: true},
	{Field: "tractorNum", Patterns: []string{"Tractor Number"}, Optional: true},
	{Field: "start", Patterns: []string{"Session Start Time"}},
	{Field: "stop", Patterns: []string{"Session Stop Time"}},
	{Field: "energy", Patterns: []string{"~energy delivered"}},
	{Field: "duration", Patterns: []string{"Duration"}},
	{Field: "startSOC", Patterns: []string{"~state of charge at session start"}},
	{Field: "endSOC", Patterns: []string{"~state of charge at session stop"}},
}

func (l chargingLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := resolve.Fleet(ctx, env.Store, FleetName, resolve.Open, nil, nil)
	if err != nil {
		return nil, err
	}
	t := f.First()
	if t == nil {
		return nil, fmt.Errorf("%s: empty file", f.Path)
	}
	m, err := headers.Resolve(t.Columns, chargingSpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	// The charging network free-types tractor labels; canonicalize both
	// sides so "wt 101", "WT101" and "WT101?" all land on the same truck.
	vehicles := make(map[string]int64, len(ident.Vehicles))
	for code, id := range ident.Vehicles {
		vehicles[canonVehicle(code)] = id
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	sessions := make([]fleet.ChargingSession, 0, len(t.Rows))
	for _, row := range t.Rows {
		code := strings.TrimSpace(m.Cell(row, "serial")) + "-" + strings.TrimSpace(m.Cell(row, "connector"))
		chargerID, ok := ident.Chargers[code]
		if !ok {
			s.Drop(fleet.DropNoChargerMatch, 1)
			continue
		}

		cs := fleet.ChargingSession{
			ChargerID:     chargerID,
			TotEnergy:     normalize.Float(m.Cell(row, "energy")),
			TotRefuelDura: normalize.DurationMinutes(m.Cell(row, "duration")),
			StartSOC:      normalize.Fraction(m.Cell(row, "startSOC")),
			EndSOC:        normalize.Fraction(m.Cell(row, "endSOC")),
		}
		cs.RefuelStart, _ = normalize.LocalTimeUTC(m.Cell(row, "start"), eastern)
		cs.RefuelEnd, _ = normalize.LocalTimeUTC(m.Cell(row, "stop"), eastern)
		// This vendor has no separate plug-in timestamps; the session window
		// is the charging window, and connect_time keys the session.
		cs.ConnectTime = cs.RefuelStart
		cs.DisconnectTime = cs.RefuelEnd

		if !loaders.SessionValid(cs) {
			s.Drop(fleet.DropInvalidSession, 1)
			continue
		}
		ap := loaders.AvgPowerKW(*cs.TotEnergy, *cs.TotRefuelDura)
		cs.AvgPower = &ap

		label := m.Cell(row, "tractorID")
		if strings.TrimSpace(label) == "" {
			label = m.Cell(row, "tractorNum")
		}
		if vehID, ok := vehicles[canonVehicle(label)]; ok {
			cs.VehicleID = &vehID
		}
		sessions = append(sessions, cs)
	}

	st, err := env.Store.UpsertChargingSessions(ctx, sessions)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}

func canonVehicle(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "?", "")
}
