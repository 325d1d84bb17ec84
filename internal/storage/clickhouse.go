package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"zev_ingest/internal/fleet"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Archive is the optional append-only telemetry archive. Unlike the
// relational store it keeps every reading as delivered by the vendor,
// pre-correction, so corrections remain reproducible after the fact.
type Archive struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse and creates the archive
// table if needed.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*Archive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	a := &Archive{conn: conn}
	if err := a.createSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the ClickHouse connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

func (a *Archive) createSchema(ctx context.Context) error {
	err := a.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS telemetry_raw (
			fleet        LowCardinality(String),
			veh_id       Int64,
			timestamp    DateTime64(3),
			latitude     Nullable(Float64),
			longitude    Nullable(Float64),
			speed        Nullable(Float64),
			mileage      Nullable(Float64),
			soc          Nullable(Float64),
			elevation    Nullable(Float64),
			key_on_time  Nullable(Float64),
			ingested_at  DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (fleet, veh_id, timestamp)
		SETTINGS index_granularity = 8192`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ArchiveTelemetry appends a batch of telemetry readings for one fleet.
func (a *Archive) ArchiveTelemetry(ctx context.Context, fleetName string, rows []fleet.TelemetryPoint) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO telemetry_raw (fleet, veh_id, timestamp, latitude, longitude, speed, mileage, soc, elevation, key_on_time)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, p := range rows {
		if err := batch.Append(fleetName, p.VehicleID, p.Timestamp, p.Latitude, p.Longitude,
			p.Speed, p.Mileage, p.SOC, p.Elevation, p.KeyOnTime); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Count returns the number of archived readings, optionally for one fleet.
func (a *Archive) Count(ctx context.Context, fleetName string) (uint64, error) {
	var count uint64
	var err error
	if fleetName != "" {
		err = a.conn.QueryRow(ctx, "SELECT count() FROM telemetry_raw WHERE fleet = ?", fleetName).Scan(&count)
	} else {
		err = a.conn.QueryRow(ctx, "SELECT count() FROM telemetry_raw").Scan(&count)
	}
	return count, err
}
