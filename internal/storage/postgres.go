package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zev_ingest/internal/fleet"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DefaultPostgresConfig returns local development settings.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "zev_performance",
		User:     "postgres",
		Password: "postgres",
	}
}

// PostgresDB implements Store against the dashboard's PostgreSQL schema.
// The schema (fleet, vehicle, charger, veh_tel, refuel_inf, veh_daily,
// maintenance) is a consumed contract; no DDL is issued here.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool and verifies connectivity.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresDB{pool: pool}, nil
}

// Close closes the connection pool.
func (d *PostgresDB) Close() error {
	d.pool.Close()
	return nil
}

// FleetIDByName looks up a fleet by display name. Missing fleets are a hard
// ingestion error, never silently created.
func (d *PostgresDB) FleetIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `SELECT id FROM fleet WHERE fleet_name = $1`, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("fleet not found: %s", name)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup fleet %s: %w", name, err)
	}
	return id, nil
}

// VehicleMap returns fleet_vehicle_id -> vehicle.id for one fleet only.
func (d *PostgresDB) VehicleMap(ctx context.Context, fleetID int64) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, fleet_vehicle_id FROM vehicle WHERE fleet_id = $1`, fleetID)
	if err != nil {
		return nil, fmt.Errorf("load vehicle map: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id int64
		var code *string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, err
		}
		if code != nil && *code != "" {
			out[*code] = id
		}
	}
	return out, rows.Err()
}

// ChargerMap returns charger code -> charger.id for one fleet only.
func (d *PostgresDB) ChargerMap(ctx context.Context, fleetID int64) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, charger FROM charger WHERE fleet_id = $1`, fleetID)
	if err != nil {
		return nil, fmt.Errorf("load charger map: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id int64
		var code *string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, err
		}
		if code != nil && *code != "" {
			out[*code] = id
		}
	}
	return out, rows.Err()
}

// LastMileageBefore returns the most recent stored mileage strictly before ts.
func (d *PostgresDB) LastMileageBefore(ctx context.Context, vehID int64, ts time.Time) (*float64, error) {
	var m float64
	err := d.pool.QueryRow(ctx, `
		SELECT mileage FROM veh_tel
		WHERE veh_id = $1 AND "timestamp" < $2 AND mileage IS NOT NULL
		ORDER BY "timestamp" DESC LIMIT 1
	`, vehID, ts).Scan(&m)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mileage anchor for vehicle %d: %w", vehID, err)
	}
	return &m, nil
}

// TelemetryForFleets returns the ordered telemetry stream the daily
// aggregator consumes (mileage, soc, speed only).
func (d *PostgresDB) TelemetryForFleets(ctx context.Context, fleetIDs []int64) ([]fleet.TelemetryPoint, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT vt.veh_id, vt."timestamp", vt.mileage, vt.soc, vt.speed
		FROM veh_tel vt
		JOIN vehicle v ON vt.veh_id = v.id
		WHERE v.fleet_id = ANY($1)
		ORDER BY vt.veh_id, vt."timestamp"
	`, fleetIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch telemetry: %w", err)
	}
	defer rows.Close()

	var out []fleet.TelemetryPoint
	for rows.Next() {
		var p fleet.TelemetryPoint
		if err := rows.Scan(&p.VehicleID, &p.Timestamp, &p.Mileage, &p.SOC, &p.Speed); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func telemetryBounds(rowsIn []fleet.TelemetryPoint) (vehIDs []int64, minTS, maxTS time.Time) {
	seen := map[int64]bool{}
	for i, r := range rowsIn {
		if !seen[r.VehicleID] {
			seen[r.VehicleID] = true
			vehIDs = append(vehIDs, r.VehicleID)
		}
		if i == 0 || r.Timestamp.Before(minTS) {
			minTS = r.Timestamp
		}
		if i == 0 || r.Timestamp.After(maxTS) {
			maxTS = r.Timestamp
		}
	}
	return
}

// UpsertTelemetry bulk-upserts telemetry on (veh_id, timestamp), updating only
// rows where a stored value actually differs, and keeps the derived PostGIS
// location in sync with the coordinates (including corrector-nulled ones).
func (d *PostgresDB) UpsertTelemetry(ctx context.Context, rowsIn []fleet.TelemetryPoint) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	vehIDs, minTS, maxTS := telemetryBounds(rowsIn)
	existing := map[string]fleet.TelemetryPoint{}
	rows, err := d.pool.Query(ctx, `
		SELECT veh_id, "timestamp", latitude, longitude, speed, mileage, soc, elevation, key_on_time
		FROM veh_tel
		WHERE veh_id = ANY($1) AND "timestamp" BETWEEN $2 AND $3
	`, vehIDs, minTS, maxTS)
	if err != nil {
		return fleet.WriteStats{}, fmt.Errorf("fetch existing telemetry: %w", err)
	}
	for rows.Next() {
		var p fleet.TelemetryPoint
		if err := rows.Scan(&p.VehicleID, &p.Timestamp, &p.Latitude, &p.Longitude,
			&p.Speed, &p.Mileage, &p.SOC, &p.Elevation, &p.KeyOnTime); err != nil {
			rows.Close()
			return fleet.WriteStats{}, err
		}
		existing[telKey(p)] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fleet.WriteStats{}, err
	}

	var cl classified
	for i, r := range rowsIn {
		old, ok := existing[telKey(r)]
		switch {
		case !ok:
			cl.inserts = append(cl.inserts, i)
		case !telemetryEqual(r, old):
			cl.updates = append(cl.updates, i)
		default:
			cl.unchanged++
		}
	}

	const upsertSQL = `
		INSERT INTO veh_tel (veh_id, "timestamp", latitude, longitude, speed, mileage, soc, elevation, key_on_time, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			CASE WHEN $3::double precision IS NOT NULL AND $4::double precision IS NOT NULL
				THEN ST_SetSRID(ST_MakePoint($4, $3), 4326)::geography ELSE NULL END)
		ON CONFLICT (veh_id, "timestamp") DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			speed = EXCLUDED.speed,
			mileage = EXCLUDED.mileage,
			soc = EXCLUDED.soc,
			elevation = EXCLUDED.elevation,
			key_on_time = EXCLUDED.key_on_time,
			location = EXCLUDED.location
		WHERE
			veh_tel.latitude IS DISTINCT FROM EXCLUDED.latitude OR
			veh_tel.longitude IS DISTINCT FROM EXCLUDED.longitude OR
			veh_tel.speed IS DISTINCT FROM EXCLUDED.speed OR
			veh_tel.mileage IS DISTINCT FROM EXCLUDED.mileage OR
			veh_tel.soc IS DISTINCT FROM EXCLUDED.soc OR
			veh_tel.elevation IS DISTINCT FROM EXCLUDED.elevation OR
			veh_tel.key_on_time IS DISTINCT FROM EXCLUDED.key_on_time`

	err = d.inTx(ctx, func(tx pgx.Tx) error {
		for _, pg := range pages(len(rowsIn)) {
			b := &pgx.Batch{}
			for _, r := range rowsIn[pg[0]:pg[1]] {
				b.Queue(upsertSQL, r.VehicleID, r.Timestamp, r.Latitude, r.Longitude,
					r.Speed, r.Mileage, r.SOC, r.Elevation, r.KeyOnTime)
			}
			if err := tx.SendBatch(ctx, b).Close(); err != nil {
				return fmt.Errorf("upsert telemetry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fleet.WriteStats{}, err
	}
	return cl.stats(len(rowsIn)), nil
}

// UpsertChargingSessions bulk-upserts sessions on (charger_id, connect_time),
// updating only when a stored column differs.
func (d *PostgresDB) UpsertChargingSessions(ctx context.Context, rowsIn []fleet.ChargingSession) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	chargerSeen := map[int64]bool{}
	var chargerIDs []int64
	var minTS, maxTS time.Time
	for _, r := range rowsIn {
		if !chargerSeen[r.ChargerID] {
			chargerSeen[r.ChargerID] = true
			chargerIDs = append(chargerIDs, r.ChargerID)
		}
		if r.ConnectTime == nil {
			continue
		}
		if minTS.IsZero() || r.ConnectTime.Before(minTS) {
			minTS = *r.ConnectTime
		}
		if maxTS.IsZero() || r.ConnectTime.After(maxTS) {
			maxTS = *r.ConnectTime
		}
	}

	existing := map[string]fleet.ChargingSession{}
	if !minTS.IsZero() {
		rows, err := d.pool.Query(ctx, `
			SELECT charger_id, veh_id, connect_time, disconnect_time, refuel_start, refuel_end,
				avg_power, max_power, tot_energy, start_soc, end_soc, tot_ref_dura
			FROM refuel_inf
			WHERE charger_id = ANY($1) AND connect_time BETWEEN $2 AND $3
		`, chargerIDs, minTS, maxTS)
		if err != nil {
			return fleet.WriteStats{}, fmt.Errorf("fetch existing sessions: %w", err)
		}
		for rows.Next() {
			var s fleet.ChargingSession
			if err := rows.Scan(&s.ChargerID, &s.VehicleID, &s.ConnectTime, &s.DisconnectTime,
				&s.RefuelStart, &s.RefuelEnd, &s.AvgPower, &s.MaxPower, &s.TotEnergy,
				&s.StartSOC, &s.EndSOC, &s.TotRefuelDura); err != nil {
				rows.Close()
				return fleet.WriteStats{}, err
			}
			existing[sessionKey(s)] = s
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fleet.WriteStats{}, err
		}
	}

	var cl classified
	for i, r := range rowsIn {
		old, ok := existing[sessionKey(r)]
		switch {
		case !ok:
			cl.inserts = append(cl.inserts, i)
		case !sessionEqual(r, old):
			cl.updates = append(cl.updates, i)
		default:
			cl.unchanged++
		}
	}

	const upsertSQL = `
		INSERT INTO refuel_inf (charger_id, veh_id, connect_time, disconnect_time,
			refuel_start, refuel_end, avg_power, max_power, tot_energy, start_soc, end_soc, tot_ref_dura)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (charger_id, connect_time) DO UPDATE SET
			veh_id = EXCLUDED.veh_id,
			disconnect_time = EXCLUDED.disconnect_time,
			refuel_start = EXCLUDED.refuel_start,
			refuel_end = EXCLUDED.refuel_end,
			avg_power = EXCLUDED.avg_power,
			max_power = EXCLUDED.max_power,
			tot_energy = EXCLUDED.tot_energy,
			start_soc = EXCLUDED.start_soc,
			end_soc = EXCLUDED.end_soc,
			tot_ref_dura = EXCLUDED.tot_ref_dura
		WHERE
			refuel_inf.veh_id IS DISTINCT FROM EXCLUDED.veh_id OR
			refuel_inf.disconnect_time IS DISTINCT FROM EXCLUDED.disconnect_time OR
			refuel_inf.refuel_start IS DISTINCT FROM EXCLUDED.refuel_start OR
			refuel_inf.refuel_end IS DISTINCT FROM EXCLUDED.refuel_end OR
			refuel_inf.avg_power IS DISTINCT FROM EXCLUDED.avg_power OR
			refuel_inf.max_power IS DISTINCT FROM EXCLUDED.max_power OR
			refuel_inf.tot_energy IS DISTINCT FROM EXCLUDED.tot_energy OR
			refuel_inf.start_soc IS DISTINCT FROM EXCLUDED.start_soc OR
			refuel_inf.end_soc IS DISTINCT FROM EXCLUDED.end_soc OR
			refuel_inf.tot_ref_dura IS DISTINCT FROM EXCLUDED.tot_ref_dura`

	err := d.inTx(ctx, func(tx pgx.Tx) error {
		for _, pg := range pages(len(rowsIn)) {
			b := &pgx.Batch{}
			for _, r := range rowsIn[pg[0]:pg[1]] {
				b.Queue(upsertSQL, r.ChargerID, r.VehicleID, r.ConnectTime, r.DisconnectTime,
					r.RefuelStart, r.RefuelEnd, r.AvgPower, r.MaxPower, r.TotEnergy,
					r.StartSOC, r.EndSOC, r.TotRefuelDura)
			}
			if err := tx.SendBatch(ctx, b).Close(); err != nil {
				return fmt.Errorf("upsert sessions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fleet.WriteStats{}, err
	}
	return cl.stats(len(rowsIn)), nil
}

// UpsertDailyUsage bulk-upserts vehicle-days on (veh_id, date), touching only
// the columns of the selected set so the direct, computed and payload paths
// never clobber each other.
func (d *PostgresDB) UpsertDailyUsage(ctx context.Context, rowsIn []fleet.DailyUsage, cols DailyColumns) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	vehSeen := map[int64]bool{}
	var vehIDs []int64
	var minD, maxD time.Time
	for i, r := range rowsIn {
		if !vehSeen[r.VehicleID] {
			vehSeen[r.VehicleID] = true
			vehIDs = append(vehIDs, r.VehicleID)
		}
		if i == 0 || r.Date.Before(minD) {
			minD = r.Date
		}
		if i == 0 || r.Date.After(maxD) {
			maxD = r.Date
		}
	}

	existing := map[string]fleet.DailyUsage{}
	rows, err := d.pool.Query(ctx, `
		SELECT veh_id, date, trip_num, init_odo, final_odo, tot_dist, tot_dura, idle_time,
			init_soc, final_soc, tot_soc_used, tot_energy, peak_payload
		FROM veh_daily
		WHERE veh_id = ANY($1) AND date BETWEEN $2 AND $3
	`, vehIDs, minD, maxD)
	if err != nil {
		return fleet.WriteStats{}, fmt.Errorf("fetch existing daily usage: %w", err)
	}
	for rows.Next() {
		var u fleet.DailyUsage
		if err := rows.Scan(&u.VehicleID, &u.Date, &u.TripNum, &u.InitOdo, &u.FinalOdo,
			&u.TotDist, &u.TotDura, &u.IdleTime, &u.InitSOC, &u.FinalSOC,
			&u.TotSOCUsed, &u.TotEnergy, &u.PeakPayload); err != nil {
			rows.Close()
			return fleet.WriteStats{}, err
		}
		existing[dailyKey(u)] = u
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fleet.WriteStats{}, err
	}

	var cl classified
	for i, r := range rowsIn {
		old, ok := existing[dailyKey(r)]
		switch {
		case !ok:
			cl.inserts = append(cl.inserts, i)
		case !dailyEqual(r, old, cols):
			cl.updates = append(cl.updates, i)
		default:
			cl.unchanged++
		}
	}

	upsertSQL, args := dailyUpsertPostgres(cols)
	err = d.inTx(ctx, func(tx pgx.Tx) error {
		for _, pg := range pages(len(rowsIn)) {
			b := &pgx.Batch{}
			for _, r := range rowsIn[pg[0]:pg[1]] {
				b.Queue(upsertSQL, args(r)...)
			}
			if err := tx.SendBatch(ctx, b).Close(); err != nil {
				return fmt.Errorf("upsert daily usage: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fleet.WriteStats{}, err
	}
	return cl.stats(len(rowsIn)), nil
}

func dailyUpsertPostgres(cols DailyColumns) (string, func(fleet.DailyUsage) []any) {
	switch cols {
	case DailyPayloadOnly:
		return `
			INSERT INTO veh_daily (veh_id, date, peak_payload)
			VALUES ($1, $2, $3)
			ON CONFLICT (veh_id, date) DO UPDATE SET
				peak_payload = EXCLUDED.peak_payload
			WHERE veh_daily.peak_payload IS DISTINCT FROM EXCLUDED.peak_payload`,
			func(r fleet.DailyUsage) []any { return []any{r.VehicleID, r.Date, r.PeakPayload} }
	case DailyComputed:
		return `
			INSERT INTO veh_daily (veh_id, date, trip_num, init_odo, final_odo, tot_dist,
				tot_dura, idle_time, init_soc, final_soc, tot_soc_used)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (veh_id, date) DO UPDATE SET
				trip_num = EXCLUDED.trip_num,
				init_odo = EXCLUDED.init_odo,
				final_odo = EXCLUDED.final_odo,
				tot_dist = EXCLUDED.tot_dist,
				tot_dura = EXCLUDED.tot_dura,
				idle_time = EXCLUDED.idle_time,
				init_soc = EXCLUDED.init_soc,
				final_soc = EXCLUDED.final_soc,
				tot_soc_used = EXCLUDED.tot_soc_used
			WHERE
				veh_daily.trip_num IS DISTINCT FROM EXCLUDED.trip_num OR
				veh_daily.init_odo IS DISTINCT FROM EXCLUDED.init_odo OR
				veh_daily.final_odo IS DISTINCT FROM EXCLUDED.final_odo OR
				veh_daily.tot_dist IS DISTINCT FROM EXCLUDED.tot_dist OR
				veh_daily.tot_dura IS DISTINCT FROM EXCLUDED.tot_dura OR
				veh_daily.idle_time IS DISTINCT FROM EXCLUDED.idle_time OR
				veh_daily.init_soc IS DISTINCT FROM EXCLUDED.init_soc OR
				veh_daily.final_soc IS DISTINCT FROM EXCLUDED.final_soc OR
				veh_daily.tot_soc_used IS DISTINCT FROM EXCLUDED.tot_soc_used`,
			func(r fleet.DailyUsage) []any {
				return []any{r.VehicleID, r.Date, r.TripNum, r.InitOdo, r.FinalOdo, r.TotDist,
					r.TotDura, r.IdleTime, r.InitSOC, r.FinalSOC, r.TotSOCUsed}
			}
	default:
		return `
			INSERT INTO veh_daily (veh_id, date, trip_num, init_odo, final_odo, tot_dist,
				tot_dura, idle_time, init_soc, final_soc, tot_soc_used, tot_energy)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (veh_id, date) DO UPDATE SET
				trip_num = EXCLUDED.trip_num,
				init_odo = EXCLUDED.init_odo,
				final_odo = EXCLUDED.final_odo,
				tot_dist = EXCLUDED.tot_dist,
				tot_dura = EXCLUDED.tot_dura,
				idle_time = EXCLUDED.idle_time,
				init_soc = EXCLUDED.init_soc,
				final_soc = EXCLUDED.final_soc,
				tot_soc_used = EXCLUDED.tot_soc_used,
				tot_energy = EXCLUDED.tot_energy
			WHERE
				veh_daily.trip_num IS DISTINCT FROM EXCLUDED.trip_num OR
				veh_daily.init_odo IS DISTINCT FROM EXCLUDED.init_odo OR
				veh_daily.final_odo IS DISTINCT FROM EXCLUDED.final_odo OR
				veh_daily.tot_dist IS DISTINCT FROM EXCLUDED.tot_dist OR
				veh_daily.tot_dura IS DISTINCT FROM EXCLUDED.tot_dura OR
				veh_daily.idle_time IS DISTINCT FROM EXCLUDED.idle_time OR
				veh_daily.init_soc IS DISTINCT FROM EXCLUDED.init_soc OR
				veh_daily.final_soc IS DISTINCT FROM EXCLUDED.final_soc OR
				veh_daily.tot_soc_used IS DISTINCT FROM EXCLUDED.tot_soc_used OR
				veh_daily.tot_energy IS DISTINCT FROM EXCLUDED.tot_energy`,
			func(r fleet.DailyUsage) []any {
				return []any{r.VehicleID, r.Date, r.TripNum, r.InitOdo, r.FinalOdo, r.TotDist,
					r.TotDura, r.IdleTime, r.InitSOC, r.FinalSOC, r.TotSOCUsed, r.TotEnergy}
			}
	}
}

// InsertMaintenance is insert-only with full-row dedup: rows identical to an
// existing row are skipped; rows matching an existing shop visit (same asset
// and enter-shop time) fill that row's NULL columns; everything else inserts.
func (d *PostgresDB) InsertMaintenance(ctx context.Context, rowsIn []fleet.MaintenanceEvent) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT date, maint_ob, veh_id, charger_id, maint_categ, maint_loc, enter_shop, exit_shop,
			enter_odo, exit_odo, parts_cost, labor_cost, add_cost, add_cost_desc,
			warranty, problem, work_perf
		FROM maintenance
	`)
	if err != nil {
		return fleet.WriteStats{}, fmt.Errorf("fetch existing maintenance: %w", err)
	}
	var existing []fleet.MaintenanceEvent
	for rows.Next() {
		var m fleet.MaintenanceEvent
		if err := rows.Scan(&m.Date, &m.MaintOb, &m.VehicleID, &m.ChargerID, &m.Categ, &m.Loc,
			&m.EnterShop, &m.ExitShop, &m.EnterOdo, &m.ExitOdo, &m.PartsCost, &m.LaborCost,
			&m.AddCost, &m.AddCostDesc, &m.Warranty, &m.Problem, &m.WorkPerf); err != nil {
			rows.Close()
			return fleet.WriteStats{}, err
		}
		existing = append(existing, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fleet.WriteStats{}, err
	}

	plan := classifyMaintenance(rowsIn, existing)

	err = d.inTx(ctx, func(tx pgx.Tx) error {
		// Inserts run first: a null-fill may target a sparse row that arrived
		// earlier in this same batch.
		for _, pg := range pages(len(plan.inserts)) {
			b := &pgx.Batch{}
			for _, i := range plan.inserts[pg[0]:pg[1]] {
				r := rowsIn[i]
				b.Queue(`
					INSERT INTO maintenance (date, maint_ob, veh_id, charger_id, maint_categ,
						maint_loc, enter_shop, exit_shop, enter_odo, exit_odo, parts_cost,
						labor_cost, add_cost, add_cost_desc, warranty, problem, work_perf)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
				`, r.Date, r.MaintOb, r.VehicleID, r.ChargerID, r.Categ, r.Loc,
					r.EnterShop, r.ExitShop, r.EnterOdo, r.ExitOdo, r.PartsCost,
					r.LaborCost, r.AddCost, r.AddCostDesc, r.Warranty, r.Problem, r.WorkPerf)
			}
			if err := tx.SendBatch(ctx, b).Close(); err != nil {
				return fmt.Errorf("insert maintenance: %w", err)
			}
		}

		for _, i := range plan.updates {
			r := rowsIn[i]
			if _, err := tx.Exec(ctx, `
				UPDATE maintenance SET
					date = COALESCE(date, $1),
					maint_categ = COALESCE(maint_categ, $2),
					maint_loc = COALESCE(maint_loc, $3),
					exit_shop = COALESCE(exit_shop, $4),
					enter_odo = COALESCE(enter_odo, $5),
					exit_odo = COALESCE(exit_odo, $6),
					parts_cost = COALESCE(parts_cost, $7),
					labor_cost = COALESCE(labor_cost, $8),
					add_cost = COALESCE(add_cost, $9),
					add_cost_desc = COALESCE(add_cost_desc, $10),
					warranty = COALESCE(warranty, $11),
					problem = COALESCE(problem, $12),
					work_perf = COALESCE(work_perf, $13)
				WHERE maint_ob = $14 AND enter_shop = $15
					AND veh_id IS NOT DISTINCT FROM $16
					AND charger_id IS NOT DISTINCT FROM $17
			`, r.Date, r.Categ, r.Loc, r.ExitShop, r.EnterOdo, r.ExitOdo,
				r.PartsCost, r.LaborCost, r.AddCost, r.AddCostDesc, r.Warranty,
				r.Problem, r.WorkPerf, r.MaintOb, r.EnterShop, r.VehicleID, r.ChargerID); err != nil {
				return fmt.Errorf("null-fill maintenance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fleet.WriteStats{}, err
	}
	return plan.stats(len(rowsIn)), nil
}

func (d *PostgresDB) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
