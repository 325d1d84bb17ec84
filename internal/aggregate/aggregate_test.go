package aggregate

import (
	"testing"
	"time"

	"zev_ingest/internal/fleet"
)

func fp(v float64) *float64 { return &v }

func pt(vehID int64, at time.Time, speed, mileage, soc *float64) fleet.TelemetryPoint {
	return fleet.TelemetryPoint{VehicleID: vehID, Timestamp: at, Speed: speed, Mileage: mileage, SOC: soc}
}

var day0 = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func TestComputeTripSplitAtThreshold(t *testing.T) {
	// Drive, stop for exactly the threshold, drive again: two trips.
	pts := []fleet.TelemetryPoint{
		pt(1, day0, fp(30), fp(1000), fp(0.9)),
		pt(1, day0.Add(5*time.Minute), fp(30), fp(1002), nil),
		pt(1, day0.Add(10*time.Minute), fp(0), fp(1004), nil),
		pt(1, day0.Add(25*time.Minute), fp(30), fp(1004), nil),
		pt(1, day0.Add(30*time.Minute), fp(30), fp(1006), nil),
		pt(1, day0.Add(35*time.Minute), fp(0), fp(1008), fp(0.7)),
	}
	rows := Compute(pts, 15)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	d := rows[0]
	if d.TripNum == nil || *d.TripNum != 2 {
		t.Errorf("TripNum = %v, want 2", d.TripNum)
	}
	if d.TotDura == nil || *d.TotDura != 0.25 {
		t.Errorf("TotDura = %v, want 0.25", d.TotDura)
	}
	if d.IdleTime == nil || *d.IdleTime != 0.25 {
		t.Errorf("IdleTime = %v, want 0.25", d.IdleTime)
	}
	if d.TotDist == nil || *d.TotDist != 8 {
		t.Errorf("TotDist = %v, want 8", d.TotDist)
	}
	if d.InitSOC == nil || *d.InitSOC != 0.9 || d.FinalSOC == nil || *d.FinalSOC != 0.7 {
		t.Errorf("SOC bounds = %v, %v, want 0.9, 0.7", d.InitSOC, d.FinalSOC)
	}
	if d.TotSOCUsed == nil || *d.TotSOCUsed != 0.2 {
		t.Errorf("TotSOCUsed = %v, want 0.2", d.TotSOCUsed)
	}
	// The aggregator never writes energy or payload.
	if d.TotEnergy != nil || d.PeakPayload != nil {
		t.Errorf("TotEnergy/PeakPayload = %v/%v, want nil/nil", d.TotEnergy, d.PeakPayload)
	}
}

func TestComputeStopJustUnderThresholdStaysOneTrip(t *testing.T) {
	pts := []fleet.TelemetryPoint{
		pt(1, day0, fp(30), nil, nil),
		pt(1, day0.Add(5*time.Minute), fp(0), nil, nil),
		pt(1, day0.Add(5*time.Minute+14*time.Minute+59*time.Second), fp(30), nil, nil),
		pt(1, day0.Add(25*time.Minute), fp(30), nil, nil),
	}
	rows := Compute(pts, 15)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if tn := rows[0].TripNum; tn == nil || *tn != 1 {
		t.Errorf("TripNum = %v, want 1 (stop was one second short)", tn)
	}
}

func TestComputeNoMovement(t *testing.T) {
	pts := []fleet.TelemetryPoint{
		pt(1, day0, fp(0), fp(500), fp(0.8)),
		pt(1, day0.Add(time.Hour), fp(0), fp(500), fp(0.8)),
		pt(1, day0.Add(2*time.Hour), nil, fp(500), fp(0.8)),
	}
	rows := Compute(pts, 15)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	d := rows[0]
	if d.TripNum == nil || *d.TripNum != 0 {
		t.Errorf("TripNum = %v, want 0", d.TripNum)
	}
	if d.TotDura == nil || *d.TotDura != 0 || d.IdleTime == nil || *d.IdleTime != 0 {
		t.Errorf("durations = %v/%v, want 0/0", d.TotDura, d.IdleTime)
	}
}

func TestComputeSOCClampOnNetGain(t *testing.T) {
	// Overnight charging can leave final SOC above initial; usage clamps to 0.
	pts := []fleet.TelemetryPoint{
		pt(1, day0, fp(10), nil, fp(0.4)),
		pt(1, day0.Add(time.Hour), fp(10), nil, fp(0.9)),
	}
	rows := Compute(pts, 15)
	if used := rows[0].TotSOCUsed; used == nil || *used != 0 {
		t.Errorf("TotSOCUsed = %v, want 0", used)
	}
}

func TestComputeGroupsByVehicleAndDay(t *testing.T) {
	pts := []fleet.TelemetryPoint{
		pt(1, day0, fp(10), fp(100), nil),
		pt(1, day0.Add(24*time.Hour), fp(10), fp(150), nil),
		pt(2, day0, fp(10), fp(900), nil),
	}
	rows := Compute(pts, 15)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	// Deterministic order: vehicle, then date.
	if rows[0].VehicleID != 1 || rows[1].VehicleID != 1 || rows[2].VehicleID != 2 {
		t.Errorf("row order = %d,%d,%d, want 1,1,2", rows[0].VehicleID, rows[1].VehicleID, rows[2].VehicleID)
	}
	if !rows[1].Date.After(rows[0].Date) {
		t.Errorf("dates not ascending: %v then %v", rows[0].Date, rows[1].Date)
	}
}

func TestComputeMissingOdometerBoundary(t *testing.T) {
	// A missing first or last reading leaves distance unknown.
	pts := []fleet.TelemetryPoint{
		pt(1, day0, fp(10), nil, nil),
		pt(1, day0.Add(time.Hour), fp(10), fp(150), nil),
	}
	rows := Compute(pts, 15)
	d := rows[0]
	if d.InitOdo != nil {
		t.Errorf("InitOdo = %v, want nil", *d.InitOdo)
	}
	if d.TotDist != nil {
		t.Errorf("TotDist = %v, want nil", *d.TotDist)
	}
	if d.FinalOdo == nil || *d.FinalOdo != 150 {
		t.Errorf("FinalOdo = %v, want 150", d.FinalOdo)
	}
}
