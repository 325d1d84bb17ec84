package wilsbach

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

func (chargingLoader) Name() string      { return "wilsbach-charging" }
func (chargingLoader) FleetName() string { return FleetName }
func (chargingLoader) Dataset() string   { return "charging" }

func (chargingLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "charging event")
}

var chargingSpecs = []headers.Spec{
	{Field: "charger", Patterns: []string{"Charger ID"}},
	{Field: "port", Patterns: []string{"Port"}},
	{Field: "vehicle", Patterns: []string{"Vehicle ID"}},
	{Field: "connect", Patterns: []string{"Connect Time"}},
	{Field: "disconnect", Patterns: []string{"Disconnect Time"}},
	{Field: "start", Patterns: []string{"Charge Start Time"}},
	{Field: "end", Patterns: []string{"Charge End Time"}},
	{Field: "peak", Patterns: []string{"Peak Power"}},
	{Field: "energy", Patterns: []string{"Energy Dispensed"}},
	{Field: "startSOC", Patterns: []string{"~vehicle soc at start"}},
	{Field: "endSOC", Patterns: []string{"~vehicle soc at end"}},
}

func (l chargingLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := resolve.Fleet(ctx, env.Store, FleetName, resolve.Open, nil, nil)
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
		chargerID, ok := ident.Chargers[chargerCode(m.Cell(row, "charger"), m.Cell(row, "port"))]
		if !ok {
			s.Drop(fleet.DropNoChargerMatch, 1)
			continue
		}

		cs := fleet.ChargingSession{
			ChargerID: chargerID,
			MaxPower:  normalize.Float(m.Cell(row, "peak")),
			TotEnergy: normalize.Float(m.Cell(row, "energy")),
			StartSOC:  normalize.Fraction(m.Cell(row, "startSOC")),
			EndSOC:    normalize.Fraction(m.Cell(row, "endSOC")),
		}
		cs.ConnectTime, _ = normalize.LocalTimeUTC(m.Cell(row, "connect"), eastern)
		cs.DisconnectTime, _ = normalize.LocalTimeUTC(m.Cell(row, "disconnect"), eastern)
		cs.RefuelStart, _ = normalize.LocalTimeUTC(m.Cell(row, "start"), eastern)
		cs.RefuelEnd, _ = normalize.LocalTimeUTC(m.Cell(row, "end"), eastern)

		// Session duration is the charging window, not the plug-in window.
		if cs.RefuelStart != nil && cs.RefuelEnd != nil {
			d := normalize.Round(cs.RefuelEnd.Sub(*cs.RefuelStart).Minutes(), 2)
			cs.TotRefuelDura = &d
		}
		if !loaders.SessionValid(cs) {
			s.Drop(fleet.DropInvalidSession, 1)
			continue
		}
		ap := loaders.AvgPowerKW(*cs.TotEnergy, *cs.TotRefuelDura)
		cs.AvgPower = &ap

		// Unknown vehicles keep the session; the charger knows who it served
		// even when the fleet roster does not.
		if vehID, ok := ident.Vehicles[strings.TrimSpace(m.Cell(row, "vehicle"))]; ok {
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

// chargerCode joins the charger serial (everything before the first colon)
// with the port number: "WD-01: Depot East" port "2" -> "WD-01-2".
func chargerCode(charger, port string) string {
	serial, _, _ := strings.Cut(charger, ":")
	return strings.TrimSpace(serial) + "-" + strings.TrimSpace(port)
}
