package loaders

import (
	"context"
	"sort"

	"zev_ingest/internal/fleet"
)

// SortTelemetry orders points by vehicle then timestamp, the order every
// sequence corrector requires.
func SortTelemetry(ps []fleet.TelemetryPoint) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].VehicleID != ps[j].VehicleID {
			return ps[i].VehicleID < ps[j].VehicleID
		}
		return ps[i].Timestamp.Before(ps[j].Timestamp)
	})
}

// DedupTelemetry removes in-batch natural-key duplicates, keeping the last
// occurrence. Input must already be sorted by SortTelemetry; the original
// file order of equal keys is preserved by the stable sort, so "last" means
// last in the vendor file.
func DedupTelemetry(ps []fleet.TelemetryPoint) ([]fleet.TelemetryPoint, int) {
	if len(ps) == 0 {
		return ps, 0
	}
	out := ps[:0:0]
	for i, p := range ps {
		if i+1 < len(ps) && ps[i+1].VehicleID == p.VehicleID && ps[i+1].Timestamp.Equal(p.Timestamp) {
			continue
		}
		out = append(out, p)
	}
	return out, len(ps) - len(out)
}

// EachVehicle invokes fn on each vehicle's contiguous range of a sorted batch.
func EachVehicle(ps []fleet.TelemetryPoint, fn func(lo, hi int) error) error {
	lo := 0
	for i := 1; i <= len(ps); i++ {
		if i == len(ps) || ps[i].VehicleID != ps[lo].VehicleID {
			if err := fn(lo, i); err != nil {
				return err
			}
			lo = i
		}
	}
	return nil
}

// ArchiveTelemetry forwards pre-correction rows to the raw archive when one
// is attached.
func (e *Env) ArchiveTelemetry(ctx context.Context, fleetName string, rows []fleet.TelemetryPoint) error {
	if e.Archive == nil || len(rows) == 0 {
		return nil
	}
	return e.Archive.ArchiveTelemetry(ctx, fleetName, rows)
}
