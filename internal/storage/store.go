// Package storage provides the database lookups and idempotent upsert
// writers shared by every vendor loader. Two interchangeable backends are
// carried: PostgreSQL (production, PostGIS-aware) and SQLite (local runs and
// tests), plus an optional ClickHouse archive for raw telemetry.
package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	"zev_ingest/internal/fleet"
)

// DailyColumns selects which business columns a veh_daily upsert may touch.
// The direct-ingestion path and the aggregator share the same natural key but
// produce different column sets; restricting the SET list is what lets either
// path refresh a vehicle-day without nulling the other's fields.
type DailyColumns int

const (
	// DailyDirect updates everything a vendor daily-summary file carries
	// (all business columns except peak_payload).
	DailyDirect DailyColumns = iota
	// DailyComputed is the aggregator's set: DailyDirect minus tot_energy,
	// which raw telemetry cannot produce.
	DailyComputed
	// DailyPayloadOnly touches only peak_payload.
	DailyPayloadOnly
)

// Store is the database surface the ingestion pipeline depends on.
// Every Upsert/Insert call wraps its writes in a single transaction, so a
// mid-batch failure leaves nothing of the file ingested.
type Store interface {
	FleetIDByName(ctx context.Context, name string) (int64, error)
	VehicleMap(ctx context.Context, fleetID int64) (map[string]int64, error)
	ChargerMap(ctx context.Context, fleetID int64) (map[string]int64, error)

	// LastMileageBefore returns the most recent stored mileage for a vehicle
	// strictly before ts, or nil when none exists. Used to anchor rebuilt
	// cumulative counters to the stored series.
	LastMileageBefore(ctx context.Context, vehID int64, ts time.Time) (*float64, error)

	// TelemetryForFleets streams the ordered (vehicle, timestamp) telemetry
	// the daily aggregator consumes.
	TelemetryForFleets(ctx context.Context, fleetIDs []int64) ([]fleet.TelemetryPoint, error)

	UpsertTelemetry(ctx context.Context, rows []fleet.TelemetryPoint) (fleet.WriteStats, error)
	UpsertChargingSessions(ctx context.Context, rows []fleet.ChargingSession) (fleet.WriteStats, error)
	UpsertDailyUsage(ctx context.Context, rows []fleet.DailyUsage, cols DailyColumns) (fleet.WriteStats, error)
	InsertMaintenance(ctx context.Context, rows []fleet.MaintenanceEvent) (fleet.WriteStats, error)

	Close() error
}

// pageSize bounds how many rows go into one statement batch.
const pageSize = 1000

func pages(n int) [][2]int {
	var out [][2]int
	for lo := 0; lo < n; lo += pageSize {
		hi := lo + pageSize
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}

// Value-equality helpers for the pre-write overlap classification. Floats
// compare within a storage-precision epsilon so a re-read of the same file
// never registers as a change.
func eqF(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) < 1e-6
}

func eqI(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqT(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func eqS(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqB(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func telemetryEqual(a, b fleet.TelemetryPoint) bool {
	return eqF(a.Latitude, b.Latitude) && eqF(a.Longitude, b.Longitude) &&
		eqF(a.Speed, b.Speed) && eqF(a.Mileage, b.Mileage) &&
		eqF(a.SOC, b.SOC) && eqF(a.Elevation, b.Elevation) &&
		eqF(a.KeyOnTime, b.KeyOnTime)
}

func sessionEqual(a, b fleet.ChargingSession) bool {
	return eqI(a.VehicleID, b.VehicleID) && eqT(a.DisconnectTime, b.DisconnectTime) &&
		eqT(a.RefuelStart, b.RefuelStart) && eqT(a.RefuelEnd, b.RefuelEnd) &&
		eqF(a.AvgPower, b.AvgPower) && eqF(a.MaxPower, b.MaxPower) &&
		eqF(a.TotEnergy, b.TotEnergy) && eqF(a.StartSOC, b.StartSOC) &&
		eqF(a.EndSOC, b.EndSOC) && eqF(a.TotRefuelDura, b.TotRefuelDura)
}

func dailyEqual(a, b fleet.DailyUsage, cols DailyColumns) bool {
	switch cols {
	case DailyPayloadOnly:
		return eqI(a.PeakPayload, b.PeakPayload)
	case DailyComputed:
		return eqI(a.TripNum, b.TripNum) && eqF(a.InitOdo, b.InitOdo) &&
			eqF(a.FinalOdo, b.FinalOdo) && eqF(a.TotDist, b.TotDist) &&
			eqF(a.TotDura, b.TotDura) && eqF(a.IdleTime, b.IdleTime) &&
			eqF(a.InitSOC, b.InitSOC) && eqF(a.FinalSOC, b.FinalSOC) &&
			eqF(a.TotSOCUsed, b.TotSOCUsed)
	default:
		return eqI(a.TripNum, b.TripNum) && eqF(a.InitOdo, b.InitOdo) &&
			eqF(a.FinalOdo, b.FinalOdo) && eqF(a.TotDist, b.TotDist) &&
			eqF(a.TotDura, b.TotDura) && eqF(a.IdleTime, b.IdleTime) &&
			eqF(a.InitSOC, b.InitSOC) && eqF(a.FinalSOC, b.FinalSOC) &&
			eqF(a.TotSOCUsed, b.TotSOCUsed) && eqF(a.TotEnergy, b.TotEnergy)
	}
}

func maintenanceEqual(a, b fleet.MaintenanceEvent) bool {
	return a.MaintOb == b.MaintOb && eqI(a.VehicleID, b.VehicleID) &&
		eqI(a.ChargerID, b.ChargerID) && eqT(a.Date, b.Date) &&
		eqS(a.Categ, b.Categ) && eqS(a.Loc, b.Loc) &&
		eqT(a.EnterShop, b.EnterShop) && eqT(a.ExitShop, b.ExitShop) &&
		eqI(a.EnterOdo, b.EnterOdo) && eqI(a.ExitOdo, b.ExitOdo) &&
		eqF(a.PartsCost, b.PartsCost) && eqF(a.LaborCost, b.LaborCost) &&
		eqF(a.AddCost, b.AddCost) && eqS(a.AddCostDesc, b.AddCostDesc) &&
		eqB(a.Warranty, b.Warranty) && eqS(a.Problem, b.Problem) &&
		eqS(a.WorkPerf, b.WorkPerf)
}

// Natural keys as map keys for classification.
func telKey(r fleet.TelemetryPoint) string {
	return fmt.Sprintf("%d|%d", r.VehicleID, r.Timestamp.UTC().UnixNano())
}

func sessionKey(r fleet.ChargingSession) string {
	ts := int64(0)
	if r.ConnectTime != nil {
		ts = r.ConnectTime.UTC().UnixNano()
	}
	return fmt.Sprintf("%d|%d", r.ChargerID, ts)
}

func dailyKey(r fleet.DailyUsage) string {
	return fmt.Sprintf("%d|%s", r.VehicleID, r.Date.UTC().Format("2006-01-02"))
}

// maintKey identifies a shop visit by asset and enter-shop time; rows without
// both (station-level sentinels) get no key and are matched by full-row
// comparison only.
func maintKey(r fleet.MaintenanceEvent) (string, bool) {
	if r.EnterShop == nil {
		return "", false
	}
	switch {
	case r.VehicleID != nil:
		return fmt.Sprintf("v%d|%d", *r.VehicleID, r.EnterShop.UTC().UnixNano()), true
	case r.ChargerID != nil:
		return fmt.Sprintf("c%d|%d", *r.ChargerID, r.EnterShop.UTC().UnixNano()), true
	}
	return "", false
}

// classification buckets computed before the write, so both backends report
// identical attempted/inserted/updated/skipped arithmetic.
type classified struct {
	inserts   []int // indices of rows with no existing key
	updates   []int // key exists, at least one column differs
	unchanged int
}

func (c classified) stats(attempted int) fleet.WriteStats {
	return fleet.WriteStats{
		Attempted:        attempted,
		Inserted:         len(c.inserts),
		Updated:          len(c.updates),
		SkippedUnchanged: c.unchanged,
	}
}

// maintNullFillable reports whether the incoming row can fill at least one
// NULL column of the existing keyed row.
func maintNullFillable(old, in fleet.MaintenanceEvent) bool {
	switch {
	case old.Date == nil && in.Date != nil,
		old.Categ == nil && in.Categ != nil,
		old.Loc == nil && in.Loc != nil,
		old.ExitShop == nil && in.ExitShop != nil,
		old.EnterOdo == nil && in.EnterOdo != nil,
		old.ExitOdo == nil && in.ExitOdo != nil,
		old.PartsCost == nil && in.PartsCost != nil,
		old.LaborCost == nil && in.LaborCost != nil,
		old.AddCost == nil && in.AddCost != nil,
		old.AddCostDesc == nil && in.AddCostDesc != nil,
		old.Warranty == nil && in.Warranty != nil,
		old.Problem == nil && in.Problem != nil,
		old.WorkPerf == nil && in.WorkPerf != nil:
		return true
	}
	return false
}

// classifyMaintenance plans an insert-only maintenance write. Maintenance has
// no usable natural key across every vendor (station-level rows lack an asset,
// legacy rows lack enter-shop times), so dedup is full-row equality and the
// only in-place change allowed is filling NULLs of a matching shop visit.
// In-batch duplicates collapse to the first occurrence. An update may target a
// row pending insert from the same batch; the writers must run inserts before
// updates so the fill has a row to land on.
func classifyMaintenance(rowsIn, existing []fleet.MaintenanceEvent) classified {
	byKey := map[string]int{}
	for i, m := range existing {
		if k, ok := maintKey(m); ok {
			byKey[k] = i
		}
	}

	var cl classified
	for i, r := range rowsIn {
		dup := false
		for _, old := range existing {
			if maintenanceEqual(r, old) {
				dup = true
				break
			}
		}
		if dup {
			cl.unchanged++
			continue
		}

		if k, ok := maintKey(r); ok {
			if j, hit := byKey[k]; hit {
				if maintNullFillable(existing[j], r) {
					cl.updates = append(cl.updates, i)
				} else {
					cl.unchanged++
				}
				continue
			}
			byKey[k] = len(existing)
		}
		cl.inserts = append(cl.inserts, i)
		existing = append(existing, r)
	}
	return cl
}
