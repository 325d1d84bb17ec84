package freight

import (
	"context"
	"strings"
	"time"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/resolve"
	"zev_ingest/internal/sourcefile"
)

type maintenanceLoader struct{}

func (maintenanceLoader) Name() string      { return "freight-maintenance" }
func (maintenanceLoader) FleetName() string { return FleetName }
func (maintenanceLoader) Dataset() string   { return "maintenance" }

func (maintenanceLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "maintenance events")
}

// The data-collection template headers embed fill-in instructions and line
// breaks, so every field matches fuzzily on its stable terms.
var maintSpecs = []headers.Spec{
	{Field: "asset", Patterns: []string{"~vehicle id unique"}},
	{Field: "categ", Patterns: []string{"~maintenance category"}},
	{Field: "problem", Patterns: []string{"~description of the condition or problem"}},
	{Field: "work", Patterns: []string{"~description of the work performed"}},
	{Field: "loc", Patterns: []string{"~in-house or outsourced"}},
	{Field: "enter", Patterns: []string{"~entered the shop"}},
	{Field: "exit", Patterns: []string{"~exited the shop"}},
	{Field: "enterOdo", Patterns: []string{"~odometer reading upon entering"}, Optional: true},
	{Field: "exitOdo", Patterns: []string{"~odometer reading upon exiting"}, Optional: true},
	{Field: "parts", Patterns: []string{"~parts cost"}},
	{Field: "labor", Patterns: []string{"~labor cost"}},
	{Field: "add", Patterns: []string{"~additional costs"}},
	{Field: "warranty", Patterns: []string{"~warranty covered"}},
}

// instructionSheets are the template's how-to-fill-this-in tabs.
var instructionSheets = map[string]bool{
	"MAINTENANCE":         true,
	"CHARGER MAINTENANCE": true,
}

func (l maintenanceLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	// One template exists per asset class; the charger workbook carries
	// "charger" in its file name.
	chargerBook := strings.Contains(strings.ToLower(f.Path), "charger")

	ident, err := identity(ctx, env, chargerBook)
	if err != nil {
		return nil, err
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)

	var events []fleet.MaintenanceEvent
	for _, t := range f.Tables {
		if instructionSheets[strings.ToUpper(strings.TrimSpace(t.Name))] {
			continue
		}
		m, err := headers.Resolve(t.Columns, maintSpecs)
		if err != nil {
			// Sheets that are not maintenance tables (notes, pivots) are
			// skipped rather than failing the whole workbook.
			continue
		}

		s.RowsRead += len(t.Rows)
		for _, row := range t.Rows {
			ev, ok := l.buildEvent(m, row, ident, chargerBook, s)
			if !ok {
				continue
			}
			events = append(events, ev)
		}
	}

	st, err := env.Store.InsertMaintenance(ctx, events)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}

func (maintenanceLoader) buildEvent(m headers.Mapping, row []string, ident *resolve.Identity, chargerBook bool, s *fleet.RunSummary) (fleet.MaintenanceEvent, bool) {
	ev := fleet.MaintenanceEvent{
		Loc:      normalize.Str(m.Cell(row, "loc")),
		EnterOdo: normalize.Int(m.Cell(row, "enterOdo")),
		ExitOdo:  normalize.Int(m.Cell(row, "exitOdo")),
		Warranty: normalize.Bool(m.Cell(row, "warranty")),
		Problem:  normalize.Str(m.Cell(row, "problem")),
		WorkPerf: normalize.Str(m.Cell(row, "work")),
	}
	ev.PartsCost, _ = normalize.Money(m.Cell(row, "parts"))
	ev.LaborCost, _ = normalize.Money(m.Cell(row, "labor"))
	ev.AddCost, ev.AddCostDesc = normalize.Money(m.Cell(row, "add"))

	// The category cell sometimes carries a subcategory after a colon; the
	// subcategory is folded into the problem text.
	categ := strings.TrimSpace(m.Cell(row, "categ"))
	if main, sub, found := strings.Cut(categ, ":"); found {
		categ = strings.TrimSpace(main)
		if sub = strings.TrimSpace(sub); sub != "" {
			ev.Problem = prefixText(ev.Problem, sub)
		}
	}
	ev.Categ = normalize.Str(categ)

	ev.EnterShop, _ = normalize.LocalTimeUTC(m.Cell(row, "enter"), time.UTC)
	ev.ExitShop, _ = normalize.LocalTimeUTC(m.Cell(row, "exit"), time.UTC)
	if ev.EnterShop != nil {
		d := fleet.Date(*ev.EnterShop)
		ev.Date = &d
	}

	asset := strings.ToUpper(strings.TrimSpace(m.Cell(row, "asset")))
	if asset == "" && ev.Problem == nil && ev.WorkPerf == nil {
		s.Drop(fleet.DropUnusableRow, 1)
		return ev, false
	}

	if chargerBook {
		ev.MaintOb = fleet.MaintObCharger
		if asset == "C03" {
			// Work on the whole station, not one port. Kept with a NULL
			// charger id and a marker in the problem text.
			if ev.Problem == nil || !strings.Contains(*ev.Problem, stationNote) {
				ev.Problem = appendText(ev.Problem, stationNote)
			}
			return ev, true
		}
		chargerID, ok := ident.Chargers[asset]
		if !ok {
			s.Drop(fleet.DropNoChargerMatch, 1)
			return ev, false
		}
		ev.ChargerID = &chargerID
		return ev, true
	}

	ev.MaintOb = fleet.MaintObVehicle
	vehID, ok := ident.Vehicles[asset]
	if !ok {
		s.Drop(fleet.DropNoVehicleMatch, 1)
		return ev, false
	}
	ev.VehicleID = &vehID
	return ev, true
}

func prefixText(base *string, prefix string) *string {
	if base == nil {
		return &prefix
	}
	out := prefix + ": " + *base
	return &out
}

func appendText(base *string, suffix string) *string {
	if base == nil {
		return &suffix
	}
	out := *base + " " + suffix
	return &out
}
