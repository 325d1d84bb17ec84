// Package resolve maps vendor asset codes to database identities for one
// fleet. Lookups are scoped to the fleet so two fleets reusing a code (both
// vendors like "Truck 1") can never cross-match.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"zev_ingest/internal/storage"
)

// Policy controls how unknown asset codes are handled.
type Policy int

const (
	// Open drops rows whose code has no database match; the loader counts
	// the drop and carries on.
	Open Policy = iota
	// Closed requires every expected code to resolve before any row is
	// processed. One missing code aborts the whole file.
	Closed
)

// Identity is the resolved code->id view of one fleet.
type Identity struct {
	FleetID  int64
	Vehicles map[string]int64
	Chargers map[string]int64
}

// Fleet resolves a fleet by name and loads its asset maps. Under Closed the
// vehicle and charger whitelists are verified up front and the maps are
// restricted to whitelisted codes; the error names every missing code so one
// run surfaces the full provisioning gap.
func Fleet(ctx context.Context, st storage.Store, name string, policy Policy, vehicles, chargers []string) (*Identity, error) {
	fleetID, err := st.FleetIDByName(ctx, name)
	if err != nil {
		return nil, err
	}

	vm, err := st.VehicleMap(ctx, fleetID)
	if err != nil {
		return nil, err
	}
	cm, err := st.ChargerMap(ctx, fleetID)
	if err != nil {
		return nil, err
	}

	if policy == Closed {
		var missing []string
		for _, code := range vehicles {
			if _, ok := vm[code]; !ok {
				missing = append(missing, "vehicle "+code)
			}
		}
		for _, code := range chargers {
			if _, ok := cm[code]; !ok {
				missing = append(missing, "charger "+code)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, fmt.Errorf("fleet %s is missing expected assets: %s",
				name, strings.Join(missing, ", "))
		}
		vm = restrict(vm, vehicles)
		cm = restrict(cm, chargers)
	}

	return &Identity{FleetID: fleetID, Vehicles: vm, Chargers: cm}, nil
}

func restrict(m map[string]int64, codes []string) map[string]int64 {
	out := make(map[string]int64, len(codes))
	for _, c := range codes {
		out[c] = m[c]
	}
	return out
}
