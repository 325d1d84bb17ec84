package freight

import (
	"context"
	"strings"
	"time"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/headers"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/sourcefile"
	"zev_ingest/internal/storage"
)

type payloadLoader struct{}

func (payloadLoader) Name() string      { return "freight-payload" }
func (payloadLoader) FleetName() string { return FleetName }
func (payloadLoader) Dataset() string   { return "daily" }

func (payloadLoader) Match(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "hbg daily summary")
}

var payloadSpecs = []headers.Spec{
	{Field: "vehicle", Patterns: []string{"~vehicle id unique"}, Optional: true},
	{Field: "date", Patterns: []string{"~date (yyyy"}},
	{Field: "payload", Patterns: []string{"~peak payload"}},
}

// Load reads the hand-filled daily summary workbook for its one machine
// readable column, the day's peak payload. Everything else in the workbook
// is superseded by the telematics-derived rollup, so only the payload column
// is written, and only that column of veh_daily is touched.
func (l payloadLoader) Load(ctx context.Context, env *loaders.Env, f *sourcefile.File) (*fleet.RunSummary, error) {
	ident, err := identity(ctx, env, false)
	if err != nil {
		return nil, err
	}

	s := fleet.NewRunSummary(l.Name(), f.Path)

	// Per (vehicle, day) the heaviest load wins across duplicate lines.
	type key struct {
		vehID int64
		date  time.Time
	}
	peaks := map[key]int64{}
	var order []key

	for _, t := range f.Tables {
		code := strings.ToUpper(strings.TrimSpace(t.Name))
		if !whitelisted[code] {
			continue
		}
		m, err := headers.Resolve(t.Columns, payloadSpecs)
		if err != nil {
			continue
		}

		s.RowsRead += len(t.Rows)
		for _, row := range t.Rows {
			rowCode := strings.ToUpper(m.Cell(row, "vehicle"))
			if rowCode == "" {
				rowCode = code
			}
			vehID, ok := ident.Vehicles[rowCode]
			if !ok {
				s.Drop(fleet.DropNoVehicleMatch, 1)
				continue
			}
			date := normalize.ParseDate(m.Cell(row, "date"))
			payload := normalize.Int(m.Cell(row, "payload"))
			if date == nil || payload == nil || *payload <= 0 {
				s.Drop(fleet.DropUnusableRow, 1)
				continue
			}
			k := key{vehID, *date}
			if prev, seen := peaks[k]; !seen {
				peaks[k] = *payload
				order = append(order, k)
			} else if *payload > prev {
				peaks[k] = *payload
			}
		}
	}

	rows := make([]fleet.DailyUsage, 0, len(order))
	for _, k := range order {
		p := peaks[k]
		rows = append(rows, fleet.DailyUsage{
			VehicleID:   k.vehID,
			Date:        k.date,
			PeakPayload: &p,
		})
	}

	st, err := env.Store.UpsertDailyUsage(ctx, rows, storage.DailyPayloadOnly)
	if err != nil {
		return nil, err
	}
	s.Write = st
	return s, nil
}
