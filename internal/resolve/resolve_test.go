package resolve

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"zev_ingest/internal/storage"
)

func seed(t *testing.T) (*storage.SQLiteDB, int64) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	fleetID, err := db.AddFleet(ctx, "Pilot")
	if err != nil {
		t.Fatal(err)
	}
	for _, code := range []string{"V1", "V2", "V3"} {
		if _, err := db.AddVehicle(ctx, fleetID, code); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.AddCharger(ctx, fleetID, "C1"); err != nil {
		t.Fatal(err)
	}
	return db, fleetID
}

func TestFleetOpen(t *testing.T) {
	db, fleetID := seed(t)
	ident, err := Fleet(context.Background(), db, "Pilot", Open, nil, nil)
	if err != nil {
		t.Fatalf("Fleet: %v", err)
	}
	if ident.FleetID != fleetID {
		t.Errorf("FleetID = %d, want %d", ident.FleetID, fleetID)
	}
	if len(ident.Vehicles) != 3 || len(ident.Chargers) != 1 {
		t.Errorf("maps = %d vehicles, %d chargers, want 3, 1", len(ident.Vehicles), len(ident.Chargers))
	}
}

func TestFleetUnknownName(t *testing.T) {
	db, _ := seed(t)
	if _, err := Fleet(context.Background(), db, "Nobody", Open, nil, nil); err == nil {
		t.Error("unknown fleet name accepted")
	}
}

func TestFleetClosedVerifiesRoster(t *testing.T) {
	db, _ := seed(t)

	// All expected assets present: the maps shrink to the whitelist.
	ident, err := Fleet(context.Background(), db, "Pilot", Closed, []string{"V1", "V2"}, []string{"C1"})
	if err != nil {
		t.Fatalf("Fleet: %v", err)
	}
	if len(ident.Vehicles) != 2 {
		t.Errorf("restricted vehicles = %d, want 2", len(ident.Vehicles))
	}
	if _, ok := ident.Vehicles["V3"]; ok {
		t.Error("V3 leaked into a restricted map")
	}

	// One run surfaces every missing code.
	_, err = Fleet(context.Background(), db, "Pilot", Closed, []string{"V1", "V9"}, []string{"C1", "C9"})
	if err == nil {
		t.Fatal("missing roster accepted")
	}
	if !strings.Contains(err.Error(), "vehicle V9") || !strings.Contains(err.Error(), "charger C9") {
		t.Errorf("error %q does not name both missing assets", err)
	}
}
