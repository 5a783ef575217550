// Package kpi persists the delivery emissions ledger.
package kpi

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	core "github.com/kilianp07/fleetdispatch/core/metrics/eco"
)

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS eco_kpi (
        vehicle_id TEXT,
        day INTEGER,
        deliveries INTEGER,
        distance_km REAL,
        energy_kwh REAL,
        co2e_grams REAL,
        PRIMARY KEY(vehicle_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or updates the KPI record.
func (s *SQLiteStore) Add(r core.Record) error {
	d := core.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO eco_kpi (vehicle_id, day, deliveries, distance_km, energy_kwh, co2e_grams)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(vehicle_id, day) DO UPDATE SET
            deliveries = deliveries + excluded.deliveries,
            distance_km = distance_km + excluded.distance_km,
            energy_kwh = energy_kwh + excluded.energy_kwh,
            co2e_grams = co2e_grams + excluded.co2e_grams`,
		r.VehicleID, d.Unix(), r.Deliveries, r.DistanceKm, r.EnergyKWh, r.CO2eGrams)
	return err
}

// Query returns records in the range [start,end]. An empty vehicleID matches
// every vehicle.
func (s *SQLiteStore) Query(vehicleID string, start, end time.Time) ([]core.Record, error) {
	start = core.Day(start)
	end = core.Day(end)
	rows, err := s.db.Query(`SELECT vehicle_id, day, deliveries, distance_km, energy_kwh, co2e_grams
        FROM eco_kpi WHERE (? = '' OR vehicle_id = ?) AND day >= ? AND day <= ? ORDER BY day, vehicle_id`,
		vehicleID, vehicleID, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var rec core.Record
		var ts int64
		if err := rows.Scan(&rec.VehicleID, &ts, &rec.Deliveries, &rec.DistanceKm, &rec.EnergyKWh, &rec.CO2eGrams); err != nil {
			return nil, err
		}
		rec.Date = time.Unix(ts, 0).UTC()
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
