package correct

import (
	"testing"
	"time"
)

func gpsTrack(coords [][2]float64) []GPSPoint {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pts := make([]GPSPoint, len(coords))
	for i, c := range coords {
		lat, lon := c[0], c[1]
		pts[i] = GPSPoint{Timestamp: base.Add(time.Duration(i) * time.Minute), Latitude: &lat, Longitude: &lon}
	}
	return pts
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is about 69 miles.
	d := Haversine(40, -76, 41, -76)
	if d < 68 || d > 70 {
		t.Errorf("Haversine(1 deg lat) = %v, want ~69", d)
	}
	if d := Haversine(40, -76, 40, -76); d != 0 {
		t.Errorf("Haversine(same point) = %v, want 0", d)
	}
}

func TestFlagGPSJumpsClusterAndReturn(t *testing.T) {
	// Two normal fixes, a glitch cluster ~69 miles away, then the return to
	// the normal track.
	pts := gpsTrack([][2]float64{
		{40.000, -76.000},
		{40.001, -76.000},
		{41.000, -76.000}, // jump: opens the cluster
		{41.001, -76.000}, // nearer the jumper than the anchor: extends it
		{40.002, -76.000}, // nearer the anchor: genuine return, kept
		{40.003, -76.000},
	})
	flags := FlagGPSJumps(pts, 5.0)
	want := []bool{false, false, true, true, false, false}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("flags[%d] = %v, want %v", i, flags[i], want[i])
		}
	}
}

func TestFlagGPSJumpsGenuineRelocation(t *testing.T) {
	// The vehicle jumps and stays: every post-jump fix is nearer the jumper
	// reference, so the whole tail stays flagged. Without a return to the
	// anchor the detector cannot exonerate the far side.
	pts := gpsTrack([][2]float64{
		{40.000, -76.000},
		{41.000, -76.000},
		{41.001, -76.000},
		{41.002, -76.000},
	})
	flags := FlagGPSJumps(pts, 5.0)
	want := []bool{false, true, true, true}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("flags[%d] = %v, want %v", i, flags[i], want[i])
		}
	}
}

func TestFlagGPSJumpsSmoothTrack(t *testing.T) {
	pts := gpsTrack([][2]float64{
		{40.000, -76.000},
		{40.010, -76.010},
		{40.020, -76.020},
	})
	for i, f := range FlagGPSJumps(pts, 5.0) {
		if f {
			t.Errorf("flags[%d] = true on a smooth track", i)
		}
	}
}

func TestFlagGPSJumpsMissingCoordinates(t *testing.T) {
	pts := gpsTrack([][2]float64{
		{40.000, -76.000},
		{40.001, -76.000},
	})
	gap := GPSPoint{Timestamp: pts[1].Timestamp.Add(time.Minute)}
	far := 41.0
	lon := -76.0
	after := GPSPoint{Timestamp: gap.Timestamp.Add(time.Minute), Latitude: &far, Longitude: &lon}
	pts = append(pts, gap, after)

	flags := FlagGPSJumps(pts, 5.0)
	if flags[2] {
		t.Error("coordinate-less point was flagged")
	}
	// The jump after the gap has no adjacent reference; it is not flagged.
	if flags[3] {
		t.Error("point after a coordinate gap was flagged without an adjacent reference")
	}
}
