package loaders

import (
	"zev_ingest/internal/fleet"
	"zev_ingest/internal/normalize"
)

// SessionValid reports whether a charging session has the minimum coherent
// shape: connect and disconnect both present and ordered, a positive
// duration, and positive energy. Anything else is vendor noise.
func SessionValid(cs fleet.ChargingSession) bool {
	if cs.ConnectTime == nil || cs.DisconnectTime == nil {
		return false
	}
	if !cs.DisconnectTime.After(*cs.ConnectTime) {
		return false
	}
	if cs.TotRefuelDura == nil || *cs.TotRefuelDura <= 0 {
		return false
	}
	if cs.TotEnergy == nil || *cs.TotEnergy <= 0 {
		return false
	}
	return true
}

// AvgPowerKW derives average power in kW from dispensed energy in kWh over a
// duration in minutes, rounded to two decimals.
func AvgPowerKW(energyKWh, minutes float64) float64 {
	return normalize.Round(energyKWh*60.0/minutes, 2)
}
