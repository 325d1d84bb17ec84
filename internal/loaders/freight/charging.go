package freight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/sourcefile"
)

type chargingLoader struct{}

func (chargingLoader) Name() string      { return "freight-charging" }
func (chargingLoader) FleetName() string { return FleetName }
func (chargingLoader) Dataset() string   { return "charging" }

func (chargingLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "charging sessions")
}

var chargingSpecs = []headers.Spec{
	{Field: "charger", Patterns: []string{"Charger"}},
	{Field: "plate", Patterns: []string{"Linked license plate"}},
	{Field: "start", Patterns: []string{"Start date"}},
	{Field: "end", Patterns: []string{"End date"}},
	{Field: "duration", Patterns: []string{"Total charging time"}},
	{Field: "energy", Patterns: []string{"Total kWh"}},
}

func (l chargingLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := identity(ctx, env, true)
	if err != nil {
		return nil, err
	}
	t := f.First()
	if t == nil {
		return nil, fmt.Errorf("%s: workbook has no data sheet", f.Path)
	}
	m, err := headers.Resolve(t.Columns, chargingSpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	sessions := make([]fleet.ChargingSession, 0, len(t.Rows))
	for _, row := range t.Rows {
		chargerID, ok := ident.Chargers[portCode(m.Cell(row, "charger"))]
		if !ok {
			s.Drop(fleet.DropNoChargerMatch, 1)
			continue
		}
		vehID, ok := ident.Vehicles[strings.ToUpper(strings.TrimSpace(m.Cell(row, "plate")))]
		if !ok {
			s.Drop(fleet.DropNoVehicleMatch, 1)
			continue
		}

		cs := fleet.ChargingSession{
			ChargerID: chargerID,
			VehicleID: &vehID,
			TotEnergy: normalize.Float(m.Cell(row, "energy")),
			// Unlike the other networks this one reports plain minutes.
			TotRefuelDura: normalize.Float(m.Cell(row, "duration")),
		}
		cs.ConnectTime, _ = normalize.LocalTimeUTC(m.Cell(row, "start"), time.UTC)
		cs.DisconnectTime, _ = normalize.LocalTimeUTC(m.Cell(row, "end"), time.UTC)

		if !loaders.SessionValid(cs) {
			s.Drop(fleet.DropInvalidSession, 1)
			continue
		}
		ap := loaders.AvgPowerKW(*cs.TotEnergy, *cs.TotRefuelDura)
		cs.AvgPower = &ap
		sessions = append(sessions, cs)
	}

	st, err := env.Store.UpsertChargingSessions(ctx, sessions)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}

// portCode condenses the network's verbose port label to the roster code:
// "C03, Sae J1772 Combo United States, 1" -> "C03P1".
func portCode(label string) string {
	parts := strings.Split(label, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(label)
	}
	return strings.TrimSpace(parts[0]) + "P" + strings.TrimSpace(parts[len(parts)-1])
}
