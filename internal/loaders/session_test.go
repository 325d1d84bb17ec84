package loaders

import (
	"testing"
	"time"

	"zev_ingest/internal/fleet"
)

func TestSessionValid(t *testing.T) {
	connect := time.Date(2024, 6, 3, 22, 0, 0, 0, time.UTC)
	disconnect := connect.Add(time.Hour)
	dura, energy := 60.0, 40.0
	zero := 0.0

	ok := fleet.ChargingSession{
		ConnectTime:    &connect,
		DisconnectTime: &disconnect,
		TotRefuelDura:  &dura,
		TotEnergy:      &energy,
	}
	if !SessionValid(ok) {
		t.Error("complete session rejected")
	}

	tests := []struct {
		name   string
		mutate func(*fleet.ChargingSession)
	}{
		{"missing connect", func(s *fleet.ChargingSession) { s.ConnectTime = nil }},
		{"missing disconnect", func(s *fleet.ChargingSession) { s.DisconnectTime = nil }},
		{"disconnect before connect", func(s *fleet.ChargingSession) { s.DisconnectTime = &connect }},
		{"zero duration", func(s *fleet.ChargingSession) { s.TotRefuelDura = &zero }},
		{"missing duration", func(s *fleet.ChargingSession) { s.TotRefuelDura = nil }},
		{"zero energy", func(s *fleet.ChargingSession) { s.TotEnergy = &zero }},
		{"missing energy", func(s *fleet.ChargingSession) { s.TotEnergy = nil }},
	}
	for _, tt := range tests {
		s := ok
		tt.mutate(&s)
		if SessionValid(s) {
			t.Errorf("%s: session accepted", tt.name)
		}
	}
}

func TestAvgPowerKW(t *testing.T) {
	tests := []struct {
		energy, minutes, want float64
	}{
		{40, 60, 40},
		{30, 45, 40},
		{7.5, 90, 5},
		{10, 96, 6.25},
	}
	for _, tt := range tests {
		if got := AvgPowerKW(tt.energy, tt.minutes); got != tt.want {
			t.Errorf("AvgPowerKW(%v, %v) = %v, want %v", tt.energy, tt.minutes, got, tt.want)
		}
	}
}
