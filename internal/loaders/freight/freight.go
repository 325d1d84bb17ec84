// Package freight ingests the Freight Equipment Leasing data-collection
// workbooks. The pilot runs a fixed roster: six tractors and one eight-port
// depot charger, all provisioned up front. Resolution is closed, so a file
// arriving before provisioning aborts instead of silently shedding rows.
package freight

import (
	"context"

	"zev_ingest/internal/loaders"
	"zev_ingest/internal/resolve"
)

// FleetName is the display name the fleet is provisioned under.
const FleetName = "Freight Equipment Leasing"

// VehicleWhitelist is the pilot tractor roster. Sheet and file names in the
// vendor workbooks use exactly these codes.
var VehicleWhitelist = []string{"DSE175", "DSE176", "DSE177", "SSE26116", "SE28500", "SE28501"}

// ChargerWhitelist is the depot charger's eight ports.
var ChargerWhitelist = []string{"C03P1", "C03P2", "C03P3", "C03P4", "C03P5", "C03P6", "C03P7", "C03P8"}

// stationNote marks maintenance rows filed against the whole C03 station
// rather than one port.
const stationNote = "[Station-level C03]"

var whitelisted = func() map[string]bool {
	m := make(map[string]bool, len(VehicleWhitelist))
	for _, v := range VehicleWhitelist {
		m[v] = true
	}
	return m
}()

func init() {
	loaders.Register(telemetryLoader{})
	loaders.Register(chargingLoader{})
	loaders.Register(dailyLoader{})
	loaders.Register(maintenanceLoader{})
	loaders.Register(payloadLoader{})
}

// identity resolves the fleet under the closed policy, verifying the full
// roster. withChargers is set by the loaders that touch the charger table.
func identity(ctx context.Context, env *loaders.Env, withChargers bool) (*resolve.Identity, error) {
	chargers := ChargerWhitelist
	if !withChargers {
		chargers = nil
	}
	return resolve.Fleet(ctx, env.Store, FleetName, resolve.Closed, VehicleWhitelist, chargers)
}
