// Package watsontown ingests the Watsontown Trucking vendor exports: the
// telematics CSV feed and the charging network workbook. The telemetry feed
// is the noisy one: GPS fixes jump between towns and the odometer column
// resets mid-file, so both sequence correctors run here.
package watsontown

import (
	"time"

	"zev_ingest/internal/loaders"
)

// FleetName is the display name the fleet is provisioned under.
const FleetName = "Watsontown Trucking"

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
}
