package wilsbach

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"zev_ingest/internal/correct"
	"zev_ingest/internal/fleet"
	"zev_ingest/internal/ledger"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/storage"
)

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

const telemetryCSV = `Vehicle ID,Data Timestamp,Speed,Odometer,Latitude,Longitude,Elevation,State Of Charge
T1,2024-06-03 10:00:00,30,1000,40.1,-76.2,300,45%
T1,2024-06-03 10:01:00,31,1001,40.1,-76.2,300,44
T1,2024-06-03 10:01:00,32,1001,40.1,-76.2,300,44
T9,2024-06-03 10:02:00,30,500,40.1,-76.2,300,44
T1,,30,1002,40.1,-76.2,300,43
`

func testEnv(t *testing.T) (*loaders.Env, *storage.SQLiteDB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	fleetID, err := db.AddFleet(ctx, FleetName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddVehicle(ctx, fleetID, "T1"); err != nil {
		t.Fatal(err)
	}

	return &loaders.Env{
		Store:   db,
		Ledger:  ledger.Load(filepath.Join(dir, "ledger.json")),
		Correct: correct.DefaultConfig(),
	}, db
}

func TestTelemetryIngestEndToEnd(t *testing.T) {
	env, db := testEnv(t)
	path := filepath.Join(t.TempDir(), "telematics-june.csv")
	if err := os.WriteFile(path, []byte(telemetryCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := loaders.Ingest(context.Background(), env, "", path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if s.Loader != "wilsbach-telemetry" {
		t.Errorf("Loader = %q, want wilsbach-telemetry", s.Loader)
	}
	if s.RowsRead != 5 {
		t.Errorf("RowsRead = %d, want 5", s.RowsRead)
	}
	for _, c := range []struct {
		reason string
		want   int
	}{
		{fleet.DropMissingTimestamp, 1},
		{fleet.DropNoVehicleMatch, 1},
		{fleet.DropDuplicates, 1},
	} {
		if got := s.Dropped(c.reason); got != c.want {
			t.Errorf("Dropped(%s) = %d, want %d", c.reason, got, c.want)
		}
	}
	want := fleet.WriteStats{Attempted: 2, Inserted: 2}
	if s.Write != want {
		t.Errorf("Write = %+v, want %+v", s.Write, want)
	}

	// Wall-clock 10:00 EDT lands at 14:00 UTC; SOC percent becomes a fraction.
	var n int
	err = db.DB().QueryRow(
		`SELECT COUNT(*) FROM veh_tel WHERE soc = 0.45 AND timestamp = ?`,
		mustUTC(t, "2024-06-03T14:00:00Z")).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("normalized row count = %d, want 1", n)
	}

	// The duplicate key kept the last occurrence.
	var speed float64
	err = db.DB().QueryRow(
		`SELECT speed FROM veh_tel WHERE timestamp = ?`,
		mustUTC(t, "2024-06-03T14:01:00Z")).Scan(&speed)
	if err != nil {
		t.Fatal(err)
	}
	if speed != 32 {
		t.Errorf("duplicate-key speed = %v, want 32 (last wins)", speed)
	}

	// Identical content again: the ledger short-circuits.
	s, err = loaders.Ingest(context.Background(), env, "", path)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !s.LedgerSkipped {
		t.Error("second run not marked LedgerSkipped")
	}

	// Forced reprocess (no ledger) rewrites nothing at the row level.
	env.Ledger = nil
	s, err = loaders.Ingest(context.Background(), env, "", path)
	if err != nil {
		t.Fatalf("forced Ingest: %v", err)
	}
	want = fleet.WriteStats{Attempted: 2, SkippedUnchanged: 2}
	if s.Write != want {
		t.Errorf("forced Write = %+v, want %+v", s.Write, want)
	}
}

func TestTelemetryIngestRepairsDoubledOdometer(t *testing.T) {
	env, db := testEnv(t)
	body := `Vehicle ID,Data Timestamp,Speed,Odometer,Latitude,Longitude,Elevation,State Of Charge
T1,2024-06-03 10:00:00,30,1000,40.1,-76.2,300,45
T1,2024-06-03 10:01:00,30,2002,40.1,-76.2,300,45
T1,2024-06-03 10:02:00,30,1002,40.1,-76.2,300,45
T1,2024-06-03 10:03:00,30,800,40.1,-76.2,300,45
`
	path := filepath.Join(t.TempDir(), "telematics-doubled.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := loaders.Ingest(context.Background(), env, "", path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := s.Dropped(fleet.DropMileageRegression); got != 1 {
		t.Errorf("Dropped(mileage_regression) = %d, want 1", got)
	}
	if s.Write.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", s.Write.Inserted)
	}

	var mileage float64
	err = db.DB().QueryRow(
		`SELECT mileage FROM veh_tel WHERE timestamp = ?`,
		mustUTC(t, "2024-06-03T14:01:00Z")).Scan(&mileage)
	if err != nil {
		t.Fatal(err)
	}
	if mileage != 1001 {
		t.Errorf("doubled reading stored as %v, want 1001 (halved)", mileage)
	}
}

func TestTelemetryIngestDropsInvalidReadings(t *testing.T) {
	env, _ := testEnv(t)
	body := `Vehicle ID,Data Timestamp,Speed,Odometer,Latitude,Longitude,Elevation,State Of Charge
T1,2024-06-03 10:00:00,30,1000,95.0,-76.2,300,45
T1,2024-06-03 10:01:00,-5,1001,40.1,-76.2,300,45
T1,2024-06-03 10:02:00,30,1002,40.1,-76.2,300,150
T1,2024-06-03 10:03:00,30,1003,40.1,-76.2,300,45
`
	path := filepath.Join(t.TempDir(), "telematics-invalid.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := loaders.Ingest(context.Background(), env, "", path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := s.Dropped(fleet.DropInvalidGPS); got != 1 {
		t.Errorf("Dropped(invalid_gps) = %d, want 1", got)
	}
	if got := s.Dropped(fleet.DropBadSpeed); got != 1 {
		t.Errorf("Dropped(bad_speed) = %d, want 1", got)
	}
	if got := s.Dropped(fleet.DropBadSOC); got != 1 {
		t.Errorf("Dropped(bad_soc) = %d, want 1", got)
	}
	if s.Write.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", s.Write.Inserted)
	}
}
