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

type maintenanceLoader struct{}

func (maintenanceLoader) Name() string      { return "wilsbach-maintenance" }
func (maintenanceLoader) FleetName() string { return FleetName }
func (maintenanceLoader) Dataset() string   { return "maintenance" }

func (maintenanceLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "maintenance log")
}

var maintenanceSpecs = []headers.Spec{
	{Field: "vehicle", Patterns: []string{"Vehicle ID"}},
	{Field: "enter", Patterns: []string{"Date to Shop"}},
	{Field: "exit", Patterns: []string{"Date Returned"}},
	{Field: "enterOdo", Patterns: []string{"Start Odometer"}},
	{Field: "exitOdo", Patterns: []string{"Returned Odometer"}},
	{Field: "parts", Patterns: []string{"Parts Costs"}},
	{Field: "labor", Patterns: []string{"Labor Costs"}},
	{Field: "add", Patterns: []string{"Added Costs"}},
	{Field: "addDesc", Patterns: []string{"Added Costs Desc"}, Optional: true},
	{Field: "warranty", Patterns: []string{"Warranty Coverage?"}},
	{Field: "categ", Patterns: []string{"Category"}},
	{Field: "loc", Patterns: []string{"Location"}},
	{Field: "problem", Patterns: []string{"Desc of Problem"}},
	{Field: "work", Patterns: []string{"Desc of Work Done"}},
}

func (l maintenanceLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := resolve.Fleet(ctx, env.Store, FleetName, resolve.Open, nil, nil)
	if err != nil {
		return nil, err
	}
	t := f.First()
	if t == nil {
		return nil, fmt.Errorf("%s: workbook has no data sheet", f.Path)
	}
	m, err := headers.Resolve(t.Columns, maintenanceSpecs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)
	s.RowsRead = len(t.Rows)

	events := make([]fleet.MaintenanceEvent, 0, len(t.Rows))
	for _, row := range t.Rows {
		vehID, ok := ident.Vehicles[strings.TrimSpace(m.Cell(row, "vehicle"))]
		if !ok {
			s.Drop(fleet.DropNoVehicleMatch, 1)
			continue
		}

		ev := fleet.MaintenanceEvent{
			MaintOb:   fleet.MaintObVehicle,
			VehicleID: &vehID,
			Categ:     normalize.Str(m.Cell(row, "categ")),
			Loc:       normalize.Str(m.Cell(row, "loc")),
			EnterOdo:  normalize.Int(m.Cell(row, "enterOdo")),
			ExitOdo:   normalize.Int(m.Cell(row, "exitOdo")),
			PartsCost: normalize.Float(m.Cell(row, "parts")),
			LaborCost: normalize.Float(m.Cell(row, "labor")),
			Warranty:  normalize.Bool(m.Cell(row, "warranty")),
			Problem:   normalize.Str(m.Cell(row, "problem")),
			WorkPerf:  normalize.Str(m.Cell(row, "work")),
		}
		ev.AddCost, ev.AddCostDesc = normalize.Money(m.Cell(row, "add"))
		if ev.AddCostDesc == nil && m.Has("addDesc") {
			ev.AddCostDesc = normalize.Str(m.Cell(row, "addDesc"))
		}
		ev.EnterShop, _ = normalize.LocalTimeUTC(m.Cell(row, "enter"), eastern)
		ev.ExitShop, _ = normalize.LocalTimeUTC(m.Cell(row, "exit"), eastern)
		if ev.EnterShop != nil {
			d := fleet.Date(*ev.EnterShop)
			ev.Date = &d
		}
		events = append(events, ev)
	}

	st, err := env.Store.InsertMaintenance(ctx, events)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}
