// Package fleet provides the canonical row types shared by every vendor
// loader, plus the per-run summary the operators read.
package fleet

import "time"

// Maintenance object buckets for MaintenanceEvent.MaintOb.
const (
	MaintObVehicle = 1
	MaintObCharger = 2
)

// TelemetryPoint is one timestamped observation for a vehicle.
// Optional readings are pointers; nil means the vendor did not report a value
// (or a corrector nulled it). Natural key: (VehicleID, Timestamp).
type TelemetryPoint struct {
	VehicleID int64
	Timestamp time.Time // UTC
	Latitude  *float64
	Longitude *float64
	Speed     *float64
	Mileage   *float64 // cumulative miles
	SOC       *float64 // fraction 0-1
	Elevation *float64
	KeyOnTime *float64
}

// ChargingSession is one charge event at a charger port.
// VehicleID is nullable: some vendors cannot link a session to a vehicle.
type ChargingSession struct {
	ChargerID      int64
	VehicleID      *int64
	ConnectTime    *time.Time
	DisconnectTime *time.Time
	RefuelStart    *time.Time
	RefuelEnd      *time.Time
	AvgPower       *float64
	MaxPower       *float64
	TotEnergy      *float64 // kWh
	StartSOC       *float64
	EndSOC         *float64
	TotRefuelDura  *float64 // minutes
}

// DailyUsage is one vehicle-day. Natural key: (VehicleID, Date).
// Date is a calendar date rendered as YYYY-MM-DD; the time component is zero.
type DailyUsage struct {
	VehicleID   int64
	Date        time.Time
	TripNum     *int64
	InitOdo     *float64
	FinalOdo    *float64
	TotDist     *float64
	TotDura     *float64 // hours
	IdleTime    *float64 // hours
	InitSOC     *float64
	FinalSOC    *float64
	TotSOCUsed  *float64
	TotEnergy   *float64 // kWh
	PeakPayload *int64   // lbs
}

// MaintenanceEvent is one shop visit for a vehicle or a charger.
// Exactly one of VehicleID/ChargerID is set, except station-level charger
// events which carry a nil ChargerID and a descriptive note in Problem.
type MaintenanceEvent struct {
	Date        *time.Time
	MaintOb     int
	VehicleID   *int64
	ChargerID   *int64
	Categ       *string
	Loc         *string
	EnterShop   *time.Time
	ExitShop    *time.Time
	EnterOdo    *int64
	ExitOdo     *int64
	PartsCost   *float64
	LaborCost   *float64
	AddCost     *float64
	AddCostDesc *string
	Warranty    *bool
	Problem     *string
	WorkPerf    *string
}

// WriteStats reports what the upsert writer did with one batch.
// Attempted must always equal Inserted + Updated + SkippedUnchanged.
type WriteStats struct {
	Attempted        int
	Inserted         int
	Updated          int
	SkippedUnchanged int
}

// Add merges another batch's stats into s.
func (s *WriteStats) Add(o WriteStats) {
	s.Attempted += o.Attempted
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.SkippedUnchanged += o.SkippedUnchanged
}

// Consistent reports whether the conflict arithmetic holds.
func (s WriteStats) Consistent() bool {
	return s.Attempted == s.Inserted+s.Updated+s.SkippedUnchanged
}

// Date truncates t to its UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
