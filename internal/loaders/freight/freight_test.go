package freight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zev_ingest/internal/correct"
	"zev_ingest/internal/ledger"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/storage"
)

const telemetryCSV = `timeStamp,latitude,longitude,speed,odometer,stateOfCharge,keyOnTime
2024-06-03 14:00:00,40.1,-76.2,30,1000,45,2.5
2024-06-03 14:01:00,40.1,-76.2,31,1001,44,2.6
`

func provision(t *testing.T, db *storage.SQLiteDB, vehicles, chargers []string) {
	t.Helper()
	ctx := context.Background()
	fleetID, err := db.AddFleet(ctx, FleetName)
	if err != nil {
		t.Fatal(err)
	}
	for _, code := range vehicles {
		if _, err := db.AddVehicle(ctx, fleetID, code); err != nil {
			t.Fatal(err)
		}
	}
	for _, code := range chargers {
		if _, err := db.AddCharger(ctx, fleetID, code); err != nil {
			t.Fatal(err)
		}
	}
}

func testEnv(t *testing.T) (*loaders.Env, *storage.SQLiteDB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &loaders.Env{
		Store:   db,
		Ledger:  ledger.Load(filepath.Join(dir, "ledger.json")),
		Correct: correct.DefaultConfig(),
	}, db
}

func TestTelemetryMatchesRosterFilenames(t *testing.T) {
	l := telemetryLoader{}
	for _, name := range []string{"DSE175.csv", "dse176.csv", "SE28500.csv"} {
		if !l.Match(name) {
			t.Errorf("Match(%s) = false, want true", name)
		}
	}
	for _, name := range []string{"DSE999.csv", "DSE175.xlsx", "telematics.csv"} {
		if l.Match(name) {
			t.Errorf("Match(%s) = true, want false", name)
		}
	}
}

func TestClosedPolicyAbortsOnMissingRoster(t *testing.T) {
	env, db := testEnv(t)
	// Only part of the roster is provisioned.
	provision(t, db, []string{"DSE175", "DSE176"}, nil)

	path := filepath.Join(t.TempDir(), "DSE175.csv")
	if err := os.WriteFile(path, []byte(telemetryCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := loaders.Ingest(context.Background(), env, "", path)
	if err == nil {
		t.Fatal("ingest succeeded against a half-provisioned fleet")
	}
	// The error names every missing code, not just the first.
	for _, code := range []string{"DSE177", "SSE26116", "SE28500", "SE28501"} {
		if !strings.Contains(err.Error(), code) {
			t.Errorf("error %q does not name missing vehicle %s", err, code)
		}
	}
	// An aborted file writes nothing and is not recorded as ingested.
	var n int
	if err := db.DB().QueryRow(`SELECT COUNT(*) FROM veh_tel`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("veh_tel rows = %d after abort, want 0", n)
	}
	if env.Ledger.Len() != 0 {
		t.Errorf("ledger Len = %d after abort, want 0", env.Ledger.Len())
	}
}

func TestTelemetryIngestFullyProvisioned(t *testing.T) {
	env, db := testEnv(t)
	provision(t, db, VehicleWhitelist, nil)

	path := filepath.Join(t.TempDir(), "DSE175.csv")
	if err := os.WriteFile(path, []byte(telemetryCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := loaders.Ingest(context.Background(), env, "", path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if s.Loader != "freight-telemetry" {
		t.Errorf("Loader = %q, want freight-telemetry", s.Loader)
	}
	if s.Write.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", s.Write.Inserted)
	}

	var n int
	if err := db.DB().QueryRow(`SELECT COUNT(*) FROM veh_tel WHERE soc = 0.45`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("fraction SOC rows = %d, want 1", n)
	}
}

func TestPortCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"C03, Sae J1772 Combo United States, 1", "C03P1"},
		{"C03, CCS, 8", "C03P8"},
		{"C03", "C03"},
	}
	for _, tt := range tests {
		if got := portCode(tt.in); got != tt.want {
			t.Errorf("portCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
