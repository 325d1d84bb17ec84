package loaders

import (
	"errors"
	"testing"
	"time"

	"zev_ingest/internal/fleet"
)

var t0 = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func tp(veh int64, at time.Time) fleet.TelemetryPoint {
	return fleet.TelemetryPoint{VehicleID: veh, Timestamp: at}
}

func TestSortTelemetry(t *testing.T) {
	ps := []fleet.TelemetryPoint{
		tp(2, t0),
		tp(1, t0.Add(time.Minute)),
		tp(1, t0),
	}
	SortTelemetry(ps)
	want := []struct {
		veh int64
		at  time.Time
	}{{1, t0}, {1, t0.Add(time.Minute)}, {2, t0}}
	for i, w := range want {
		if ps[i].VehicleID != w.veh || !ps[i].Timestamp.Equal(w.at) {
			t.Errorf("ps[%d] = %d@%v, want %d@%v", i, ps[i].VehicleID, ps[i].Timestamp, w.veh, w.at)
		}
	}
}

func TestDedupTelemetryKeepsLast(t *testing.T) {
	speed1, speed2 := 10.0, 20.0
	ps := []fleet.TelemetryPoint{
		{VehicleID: 1, Timestamp: t0, Speed: &speed1},
		{VehicleID: 1, Timestamp: t0, Speed: &speed2},
		tp(1, t0.Add(time.Minute)),
		tp(2, t0), // same timestamp, different vehicle: not a duplicate
	}
	out, dups := DedupTelemetry(ps)
	if dups != 1 || len(out) != 3 {
		t.Fatalf("DedupTelemetry = %d rows, %d dups, want 3, 1", len(out), dups)
	}
	if out[0].Speed == nil || *out[0].Speed != 20 {
		t.Errorf("kept Speed = %v, want 20 (last occurrence)", out[0].Speed)
	}

	out, dups = DedupTelemetry(nil)
	if out != nil || dups != 0 {
		t.Errorf("DedupTelemetry(nil) = %v, %d, want nil, 0", out, dups)
	}
}

func TestEachVehicle(t *testing.T) {
	ps := []fleet.TelemetryPoint{
		tp(1, t0), tp(1, t0.Add(time.Minute)),
		tp(2, t0),
		tp(3, t0), tp(3, t0.Add(time.Minute)), tp(3, t0.Add(2*time.Minute)),
	}
	var ranges [][2]int
	err := EachVehicle(ps, func(lo, hi int) error {
		ranges = append(ranges, [2]int{lo, hi})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{0, 2}, {2, 3}, {3, 6}}
	if len(ranges) != len(want) {
		t.Fatalf("ranges = %v, want %v", ranges, want)
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("ranges[%d] = %v, want %v", i, ranges[i], want[i])
		}
	}

	// An error from fn stops the walk.
	calls := 0
	sentinel := errors.New("stop")
	err = EachVehicle(ps, func(lo, hi int) error {
		calls++
		return sentinel
	})
	if err != sentinel || calls != 1 {
		t.Errorf("error walk = %v after %d calls, want sentinel after 1", err, calls)
	}

	if err := EachVehicle(nil, func(lo, hi int) error { return sentinel }); err != nil {
		t.Errorf("EachVehicle(empty) = %v, want nil", err)
	}
}
