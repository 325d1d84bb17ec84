// Package wilsbach ingests the Wilsbach Distributors vendor exports:
// telematics workbooks, charging event workbooks, the daily usage summary and
// the maintenance log. Wilsbach reports wall-clock US Eastern timestamps, so
// every parse goes through the DST-aware local time path.
package wilsbach

import (
	"time"

	"zev_ingest/internal/loaders"
)

// FleetName is the display name the fleet is provisioned under.
const FleetName = "Wilsbach Distributors"

var eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func init() {
	loaders.Register(telemetryLoader{})
	loaders.Register(chargingLoader{})
	loaders.Register(dailyLoader{})
	loaders.Register(maintenanceLoader{})
}
