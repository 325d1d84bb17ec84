package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"zev_ingest/internal/fleet"
)

// SQLiteDB implements Store against a local SQLite file. Used for local runs
// without a PostgreSQL instance and by the test suite. The schema mirrors the
// production one minus the PostGIS location column.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path and
// creates the schema if needed.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

// DB exposes the underlying handle for test fixtures.
func (d *SQLiteDB) DB() *sql.DB { return d.db }

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fleet (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fleet_name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS vehicle (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fleet_id INTEGER NOT NULL REFERENCES fleet(id),
		fleet_vehicle_id TEXT
	);

	CREATE TABLE IF NOT EXISTS charger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fleet_id INTEGER NOT NULL REFERENCES fleet(id),
		charger TEXT
	);

	CREATE TABLE IF NOT EXISTS veh_tel (
		veh_id INTEGER NOT NULL REFERENCES vehicle(id),
		timestamp TIMESTAMP NOT NULL,
		latitude REAL,
		longitude REAL,
		speed REAL,
		mileage REAL,
		soc REAL,
		elevation REAL,
		key_on_time REAL,
		PRIMARY KEY (veh_id, timestamp)
	);

	CREATE TABLE IF NOT EXISTS refuel_inf (
		charger_id INTEGER NOT NULL REFERENCES charger(id),
		veh_id INTEGER REFERENCES vehicle(id),
		connect_time TIMESTAMP NOT NULL,
		disconnect_time TIMESTAMP,
		refuel_start TIMESTAMP,
		refuel_end TIMESTAMP,
		avg_power REAL,
		max_power REAL,
		tot_energy REAL,
		start_soc REAL,
		end_soc REAL,
		tot_ref_dura REAL,
		PRIMARY KEY (charger_id, connect_time)
	);

	CREATE TABLE IF NOT EXISTS veh_daily (
		veh_id INTEGER NOT NULL REFERENCES vehicle(id),
		date DATE NOT NULL,
		trip_num INTEGER,
		init_odo REAL,
		final_odo REAL,
		tot_dist REAL,
		tot_dura REAL,
		idle_time REAL,
		init_soc REAL,
		final_soc REAL,
		tot_soc_used REAL,
		tot_energy REAL,
		peak_payload INTEGER,
		PRIMARY KEY (veh_id, date)
	);

	CREATE TABLE IF NOT EXISTS maintenance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TIMESTAMP,
		maint_ob INTEGER NOT NULL,
		veh_id INTEGER REFERENCES vehicle(id),
		charger_id INTEGER REFERENCES charger(id),
		maint_categ TEXT,
		maint_loc TEXT,
		enter_shop TIMESTAMP,
		exit_shop TIMESTAMP,
		enter_odo INTEGER,
		exit_odo INTEGER,
		parts_cost REAL,
		labor_cost REAL,
		add_cost REAL,
		add_cost_desc TEXT,
		warranty INTEGER,
		problem TEXT,
		work_perf TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_veh_tel_ts ON veh_tel(timestamp);
	CREATE INDEX IF NOT EXISTS idx_veh_daily_date ON veh_daily(date);
	CREATE INDEX IF NOT EXISTS idx_maintenance_enter ON maintenance(enter_shop);
	`
	_, err := db.Exec(schema)
	return err
}

// AddFleet inserts a fleet row; used by local setup and tests.
func (d *SQLiteDB) AddFleet(ctx context.Context, name string) (int64, error) {
	res, err := d.db.ExecContext(ctx, `INSERT INTO fleet (fleet_name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("add fleet: %w", err)
	}
	return res.LastInsertId()
}

// AddVehicle inserts a vehicle row; used by local setup and tests.
func (d *SQLiteDB) AddVehicle(ctx context.Context, fleetID int64, code string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO vehicle (fleet_id, fleet_vehicle_id) VALUES (?, ?)`, fleetID, code)
	if err != nil {
		return 0, fmt.Errorf("add vehicle: %w", err)
	}
	return res.LastInsertId()
}

// AddCharger inserts a charger row; used by local setup and tests.
func (d *SQLiteDB) AddCharger(ctx context.Context, fleetID int64, code string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO charger (fleet_id, charger) VALUES (?, ?)`, fleetID, code)
	if err != nil {
		return 0, fmt.Errorf("add charger: %w", err)
	}
	return res.LastInsertId()
}

func (d *SQLiteDB) FleetIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, `SELECT id FROM fleet WHERE fleet_name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("fleet not found: %s", name)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup fleet %s: %w", name, err)
	}
	return id, nil
}

func (d *SQLiteDB) VehicleMap(ctx context.Context, fleetID int64) (map[string]int64, error) {
	return d.codeMap(ctx, `SELECT id, fleet_vehicle_id FROM vehicle WHERE fleet_id = ?`, fleetID)
}

func (d *SQLiteDB) ChargerMap(ctx context.Context, fleetID int64) (map[string]int64, error) {
	return d.codeMap(ctx, `SELECT id, charger FROM charger WHERE fleet_id = ?`, fleetID)
}

func (d *SQLiteDB) codeMap(ctx context.Context, query string, fleetID int64) (map[string]int64, error) {
	rows, err := d.db.QueryContext(ctx, query, fleetID)
	if err != nil {
		return nil, fmt.Errorf("load id map: %w", err)
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

func (d *SQLiteDB) LastMileageBefore(ctx context.Context, vehID int64, ts time.Time) (*float64, error) {
	var m float64
	err := d.db.QueryRowContext(ctx, `
		SELECT mileage FROM veh_tel
		WHERE veh_id = ? AND timestamp < ? AND mileage IS NOT NULL
		ORDER BY timestamp DESC LIMIT 1
	`, vehID, ts).Scan(&m)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mileage anchor for vehicle %d: %w", vehID, err)
	}
	return &m, nil
}

func (d *SQLiteDB) TelemetryForFleets(ctx context.Context, fleetIDs []int64) ([]fleet.TelemetryPoint, error) {
	query := `
		SELECT vt.veh_id, vt.timestamp, vt.mileage, vt.soc, vt.speed
		FROM veh_tel vt
		JOIN vehicle v ON vt.veh_id = v.id
		WHERE v.fleet_id IN (` + placeholders(len(fleetIDs)) + `)
		ORDER BY vt.veh_id, vt.timestamp`
	rows, err := d.db.QueryContext(ctx, query, int64Args(fleetIDs)...)
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

func (d *SQLiteDB) UpsertTelemetry(ctx context.Context, rowsIn []fleet.TelemetryPoint) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	vehIDs, minTS, maxTS := telemetryBounds(rowsIn)
	query := `
		SELECT veh_id, timestamp, latitude, longitude, speed, mileage, soc, elevation, key_on_time
		FROM veh_tel
		WHERE veh_id IN (` + placeholders(len(vehIDs)) + `) AND timestamp BETWEEN ? AND ?`
	args := append(int64Args(vehIDs), minTS, maxTS)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fleet.WriteStats{}, fmt.Errorf("fetch existing telemetry: %w", err)
	}
	existing := map[string]fleet.TelemetryPoint{}
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

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO veh_tel (veh_id, timestamp, latitude, longitude, speed, mileage, soc, elevation, key_on_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (veh_id, timestamp) DO UPDATE SET
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				speed = excluded.speed,
				mileage = excluded.mileage,
				soc = excluded.soc,
				elevation = excluded.elevation,
				key_on_time = excluded.key_on_time
			WHERE
				veh_tel.latitude IS NOT excluded.latitude OR
				veh_tel.longitude IS NOT excluded.longitude OR
				veh_tel.speed IS NOT excluded.speed OR
				veh_tel.mileage IS NOT excluded.mileage OR
				veh_tel.soc IS NOT excluded.soc OR
				veh_tel.elevation IS NOT excluded.elevation OR
				veh_tel.key_on_time IS NOT excluded.key_on_time`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rowsIn {
			if _, err := stmt.ExecContext(ctx, r.VehicleID, r.Timestamp, r.Latitude, r.Longitude,
				r.Speed, r.Mileage, r.SOC, r.Elevation, r.KeyOnTime); err != nil {
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

func (d *SQLiteDB) UpsertChargingSessions(ctx context.Context, rowsIn []fleet.ChargingSession) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	chargerSeen := map[int64]bool{}
	var chargerIDs []int64
	for _, r := range rowsIn {
		if !chargerSeen[r.ChargerID] {
			chargerSeen[r.ChargerID] = true
			chargerIDs = append(chargerIDs, r.ChargerID)
		}
	}

	query := `
		SELECT charger_id, veh_id, connect_time, disconnect_time, refuel_start, refuel_end,
			avg_power, max_power, tot_energy, start_soc, end_soc, tot_ref_dura
		FROM refuel_inf
		WHERE charger_id IN (` + placeholders(len(chargerIDs)) + `)`
	rows, err := d.db.QueryContext(ctx, query, int64Args(chargerIDs)...)
	if err != nil {
		return fleet.WriteStats{}, fmt.Errorf("fetch existing sessions: %w", err)
	}
	existing := map[string]fleet.ChargingSession{}
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

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO refuel_inf (charger_id, veh_id, connect_time, disconnect_time,
				refuel_start, refuel_end, avg_power, max_power, tot_energy, start_soc, end_soc, tot_ref_dura)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (charger_id, connect_time) DO UPDATE SET
				veh_id = excluded.veh_id,
				disconnect_time = excluded.disconnect_time,
				refuel_start = excluded.refuel_start,
				refuel_end = excluded.refuel_end,
				avg_power = excluded.avg_power,
				max_power = excluded.max_power,
				tot_energy = excluded.tot_energy,
				start_soc = excluded.start_soc,
				end_soc = excluded.end_soc,
				tot_ref_dura = excluded.tot_ref_dura
			WHERE
				refuel_inf.veh_id IS NOT excluded.veh_id OR
				refuel_inf.disconnect_time IS NOT excluded.disconnect_time OR
				refuel_inf.refuel_start IS NOT excluded.refuel_start OR
				refuel_inf.refuel_end IS NOT excluded.refuel_end OR
				refuel_inf.avg_power IS NOT excluded.avg_power OR
				refuel_inf.max_power IS NOT excluded.max_power OR
				refuel_inf.tot_energy IS NOT excluded.tot_energy OR
				refuel_inf.start_soc IS NOT excluded.start_soc OR
				refuel_inf.end_soc IS NOT excluded.end_soc OR
				refuel_inf.tot_ref_dura IS NOT excluded.tot_ref_dura`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rowsIn {
			if _, err := stmt.ExecContext(ctx, r.ChargerID, r.VehicleID, r.ConnectTime, r.DisconnectTime,
				r.RefuelStart, r.RefuelEnd, r.AvgPower, r.MaxPower, r.TotEnergy,
				r.StartSOC, r.EndSOC, r.TotRefuelDura); err != nil {
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

func (d *SQLiteDB) UpsertDailyUsage(ctx context.Context, rowsIn []fleet.DailyUsage, cols DailyColumns) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	vehSeen := map[int64]bool{}
	var vehIDs []int64
	for _, r := range rowsIn {
		if !vehSeen[r.VehicleID] {
			vehSeen[r.VehicleID] = true
			vehIDs = append(vehIDs, r.VehicleID)
		}
	}

	query := `
		SELECT veh_id, date, trip_num, init_odo, final_odo, tot_dist, tot_dura, idle_time,
			init_soc, final_soc, tot_soc_used, tot_energy, peak_payload
		FROM veh_daily
		WHERE veh_id IN (` + placeholders(len(vehIDs)) + `)`
	rows, err := d.db.QueryContext(ctx, query, int64Args(vehIDs)...)
	if err != nil {
		return fleet.WriteStats{}, fmt.Errorf("fetch existing daily usage: %w", err)
	}
	existing := map[string]fleet.DailyUsage{}
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

	upsertSQL, args := dailyUpsertSQLite(cols)
	err = d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rowsIn {
			if _, err := stmt.ExecContext(ctx, args(r)...); err != nil {
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

func dailyUpsertSQLite(cols DailyColumns) (string, func(fleet.DailyUsage) []any) {
	switch cols {
	case DailyPayloadOnly:
		return `
			INSERT INTO veh_daily (veh_id, date, peak_payload)
			VALUES (?, ?, ?)
			ON CONFLICT (veh_id, date) DO UPDATE SET
				peak_payload = excluded.peak_payload
			WHERE veh_daily.peak_payload IS NOT excluded.peak_payload`,
			func(r fleet.DailyUsage) []any { return []any{r.VehicleID, r.Date, r.PeakPayload} }
	case DailyComputed:
		return `
			INSERT INTO veh_daily (veh_id, date, trip_num, init_odo, final_odo, tot_dist,
				tot_dura, idle_time, init_soc, final_soc, tot_soc_used)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (veh_id, date) DO UPDATE SET
				trip_num = excluded.trip_num,
				init_odo = excluded.init_odo,
				final_odo = excluded.final_odo,
				tot_dist = excluded.tot_dist,
				tot_dura = excluded.tot_dura,
				idle_time = excluded.idle_time,
				init_soc = excluded.init_soc,
				final_soc = excluded.final_soc,
				tot_soc_used = excluded.tot_soc_used
			WHERE
				veh_daily.trip_num IS NOT excluded.trip_num OR
				veh_daily.init_odo IS NOT excluded.init_odo OR
				veh_daily.final_odo IS NOT excluded.final_odo OR
				veh_daily.tot_dist IS NOT excluded.tot_dist OR
				veh_daily.tot_dura IS NOT excluded.tot_dura OR
				veh_daily.idle_time IS NOT excluded.idle_time OR
				veh_daily.init_soc IS NOT excluded.init_soc OR
				veh_daily.final_soc IS NOT excluded.final_soc OR
				veh_daily.tot_soc_used IS NOT excluded.tot_soc_used`,
			func(r fleet.DailyUsage) []any {
				return []any{r.VehicleID, r.Date, r.TripNum, r.InitOdo, r.FinalOdo, r.TotDist,
					r.TotDura, r.IdleTime, r.InitSOC, r.FinalSOC, r.TotSOCUsed}
			}
	default:
		return `
			INSERT INTO veh_daily (veh_id, date, trip_num, init_odo, final_odo, tot_dist,
				tot_dura, idle_time, init_soc, final_soc, tot_soc_used, tot_energy)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (veh_id, date) DO UPDATE SET
				trip_num = excluded.trip_num,
				init_odo = excluded.init_odo,
				final_odo = excluded.final_odo,
				tot_dist = excluded.tot_dist,
				tot_dura = excluded.tot_dura,
				idle_time = excluded.idle_time,
				init_soc = excluded.init_soc,
				final_soc = excluded.final_soc,
				tot_soc_used = excluded.tot_soc_used,
				tot_energy = excluded.tot_energy
			WHERE
				veh_daily.trip_num IS NOT excluded.trip_num OR
				veh_daily.init_odo IS NOT excluded.init_odo OR
				veh_daily.final_odo IS NOT excluded.final_odo OR
				veh_daily.tot_dist IS NOT excluded.tot_dist OR
				veh_daily.tot_dura IS NOT excluded.tot_dura OR
				veh_daily.idle_time IS NOT excluded.idle_time OR
				veh_daily.init_soc IS NOT excluded.init_soc OR
				veh_daily.final_soc IS NOT excluded.final_soc OR
				veh_daily.tot_soc_used IS NOT excluded.tot_soc_used OR
				veh_daily.tot_energy IS NOT excluded.tot_energy`,
			func(r fleet.DailyUsage) []any {
				return []any{r.VehicleID, r.Date, r.TripNum, r.InitOdo, r.FinalOdo, r.TotDist,
					r.TotDura, r.IdleTime, r.InitSOC, r.FinalSOC, r.TotSOCUsed, r.TotEnergy}
			}
	}
}

func (d *SQLiteDB) InsertMaintenance(ctx context.Context, rowsIn []fleet.MaintenanceEvent) (fleet.WriteStats, error) {
	if len(rowsIn) == 0 {
		return fleet.WriteStats{}, nil
	}

	rows, err := d.db.QueryContext(ctx, `
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

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		// Inserts run first: a null-fill may target a sparse row that arrived
		// earlier in this same batch.
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO maintenance (date, maint_ob, veh_id, charger_id, maint_categ,
				maint_loc, enter_shop, exit_shop, enter_odo, exit_odo, parts_cost,
				labor_cost, add_cost, add_cost_desc, warranty, problem, work_perf)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, i := range plan.inserts {
			r := rowsIn[i]
			if _, err := stmt.ExecContext(ctx, r.Date, r.MaintOb, r.VehicleID, r.ChargerID,
				r.Categ, r.Loc, r.EnterShop, r.ExitShop, r.EnterOdo, r.ExitOdo, r.PartsCost,
				r.LaborCost, r.AddCost, r.AddCostDesc, r.Warranty, r.Problem, r.WorkPerf); err != nil {
				return fmt.Errorf("insert maintenance: %w", err)
			}
		}

		for _, i := range plan.updates {
			r := rowsIn[i]
			if _, err := tx.ExecContext(ctx, `
				UPDATE maintenance SET
					date = COALESCE(date, ?),
					maint_categ = COALESCE(maint_categ, ?),
					maint_loc = COALESCE(maint_loc, ?),
					exit_shop = COALESCE(exit_shop, ?),
					enter_odo = COALESCE(enter_odo, ?),
					exit_odo = COALESCE(exit_odo, ?),
					parts_cost = COALESCE(parts_cost, ?),
					labor_cost = COALESCE(labor_cost, ?),
					add_cost = COALESCE(add_cost, ?),
					add_cost_desc = COALESCE(add_cost_desc, ?),
					warranty = COALESCE(warranty, ?),
					problem = COALESCE(problem, ?),
					work_perf = COALESCE(work_perf, ?)
				WHERE maint_ob = ? AND enter_shop = ?
					AND veh_id IS ? AND charger_id IS ?
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

func (d *SQLiteDB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
