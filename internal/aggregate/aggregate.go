// Package aggregate rebuilds per-day vehicle usage from stored telemetry.
// It serves the fleets whose vendors ship raw pings but no daily summary:
// trips, drive time and idle time are derived from the speed series, odometer
// and SOC boundaries from the first and last pings of the day.
package aggregate

import (
	"context"
	"sort"
	"time"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/storage"
)

// DefaultIdleThresholdMin is the stop length that splits two trips. Stops
// shorter than this (loading docks, traffic) stay inside the trip.
const DefaultIdleThresholdMin = 15.0

// Run recomputes the rollup for the given fleets and upserts it. The write
// touches only the telemetry-derived columns, so vendor-reported energy and
// payload figures on the same vehicle-days survive the refresh.
func Run(ctx context.Context, st storage.Store, fleetIDs []int64, idleThresholdMin float64) (fleet.WriteStats, error) {
	pts, err := st.TelemetryForFleets(ctx, fleetIDs)
	if err != nil {
		return fleet.WriteStats{}, err
	}
	rows := Compute(pts, idleThresholdMin)
	return st.UpsertDailyUsage(ctx, rows, storage.DailyComputed)
}

// Compute rolls telemetry up into one row per vehicle per UTC day.
func Compute(pts []fleet.TelemetryPoint, idleThresholdMin float64) []fleet.DailyUsage {
	type key struct {
		vehID int64
		date  time.Time
	}
	grouped := map[key][]fleet.TelemetryPoint{}
	var order []key
	for _, p := range pts {
		k := key{p.VehicleID, fleet.Date(p.Timestamp)}
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], p)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].vehID != order[j].vehID {
			return order[i].vehID < order[j].vehID
		}
		return order[i].date.Before(order[j].date)
	})

	rows := make([]fleet.DailyUsage, 0, len(order))
	for _, k := range order {
		day := grouped[k]
		sort.SliceStable(day, func(i, j int) bool { return day[i].Timestamp.Before(day[j].Timestamp) })
		rows = append(rows, computeDay(k.vehID, k.date, day, idleThresholdMin))
	}
	return rows
}

func computeDay(vehID int64, date time.Time, day []fleet.TelemetryPoint, idleThresholdMin float64) fleet.DailyUsage {
	d := fleet.DailyUsage{VehicleID: vehID, Date: date}

	// Odometer boundaries are positional; a day that starts with a missing
	// reading has no trustworthy distance.
	d.InitOdo = day[0].Mileage
	d.FinalOdo = day[len(day)-1].Mileage
	if d.InitOdo != nil && d.FinalOdo != nil {
		v := normalize.Round(*d.FinalOdo-*d.InitOdo, 2)
		d.TotDist = &v
	}

	for _, p := range day {
		if p.SOC != nil {
			d.InitSOC = p.SOC
			break
		}
	}
	for i := len(day) - 1; i >= 0; i-- {
		if day[i].SOC != nil {
			d.FinalSOC = day[i].SOC
			break
		}
	}
	if d.InitSOC != nil && d.FinalSOC != nil {
		// Net-gain days (overnight charging spilling past midnight) clamp
		// to zero rather than reporting negative usage.
		used := normalize.Round(max(*d.InitSOC-*d.FinalSOC, 0), 4)
		d.TotSOCUsed = &used
	}

	driveHours, idleHours, trips := segmentTrips(day, idleThresholdMin*60)
	d.TotDura = &driveHours
	d.IdleTime = &idleHours
	d.TripNum = &trips
	return d
}

// segmentTrips walks the day's speed series between the first and last moving
// samples. Each interval is charged to drive or idle time by the speed at its
// start; a new trip begins when movement resumes after an accumulated stop of
// at least idleThresholdSec.
func segmentTrips(day []fleet.TelemetryPoint, idleThresholdSec float64) (driveHours, idleHours float64, trips int64) {
	moving := func(p fleet.TelemetryPoint) bool { return p.Speed != nil && *p.Speed > 0 }

	first, last := -1, -1
	for i, p := range day {
		if moving(p) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, 0
	}

	var driveSec, idleSec, stopSec float64
	trips = 1
	prevMoving := false
	for i := first; i < last; i++ {
		dt := day[i+1].Timestamp.Sub(day[i].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		if moving(day[i]) {
			driveSec += dt
			if !prevMoving && stopSec >= idleThresholdSec {
				trips++
			}
			// Movement resets the stop accumulator so separate short stops
			// cannot add up to a trip break.
			stopSec = 0
			prevMoving = true
		} else {
			idleSec += dt
			stopSec += dt
			prevMoving = false
		}
	}
	return normalize.Round(driveSec/3600, 2), normalize.Round(idleSec/3600, 2), trips
}
