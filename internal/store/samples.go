package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// UpsertSamples writes canonical samples in one transaction. An existing
// (tenant, sample_id) row is overwritten: reprocessing supersedes, it never
// duplicates.
func (db *DB) UpsertSamples(ctx context.Context, samples []oil.Sample) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (
			tenant, sample_id, sample_date, unit_id,
			machine_name, machine_model, machine_brand, machine_hours, machine_serial,
			component_name, component_serial, component_hours,
			oil_brand, oil_type, oil_grade, measurements
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant, sample_id) DO UPDATE SET
			sample_date = excluded.sample_date,
			unit_id = excluded.unit_id,
			machine_name = excluded.machine_name,
			machine_model = excluded.machine_model,
			machine_brand = excluded.machine_brand,
			machine_hours = excluded.machine_hours,
			machine_serial = excluded.machine_serial,
			component_name = excluded.component_name,
			component_serial = excluded.component_serial,
			component_hours = excluded.component_hours,
			oil_brand = excluded.oil_brand,
			oil_type = excluded.oil_type,
			oil_grade = excluded.oil_grade,
			measurements = excluded.measurements
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		measurements, err := json.Marshal(s.Measurements)
		if err != nil {
			return fmt.Errorf("failed to encode measurements for sample %s: %w", s.SampleID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			s.Tenant, s.SampleID, s.SampleDate.UTC(), s.UnitID,
			s.MachineName, s.MachineModel, s.MachineBrand, s.MachineHours, s.MachineSerial,
			s.ComponentName, s.ComponentSerial, s.ComponentHours,
			s.OilBrand, s.OilType, s.OilGrade, string(measurements),
		); err != nil {
			return fmt.Errorf("failed to upsert sample %s: %w", s.SampleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

// SamplesByTenant returns all canonical samples for one tenant, ordered by
// sample date then sample id.
func (db *DB) SamplesByTenant(ctx context.Context, tenant string) ([]oil.Sample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tenant, sample_id, sample_date, unit_id,
		       machine_name, machine_model, machine_brand, machine_hours, machine_serial,
		       component_name, component_serial, component_hours,
		       oil_brand, oil_type, oil_grade, measurements
		FROM samples
		WHERE tenant = ?
		ORDER BY sample_date, sample_id
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []oil.Sample
	for rows.Next() {
		var s oil.Sample
		var measurements string
		if err := rows.Scan(
			&s.Tenant, &s.SampleID, &s.SampleDate, &s.UnitID,
			&s.MachineName, &s.MachineModel, &s.MachineBrand, &s.MachineHours, &s.MachineSerial,
			&s.ComponentName, &s.ComponentSerial, &s.ComponentHours,
			&s.OilBrand, &s.OilType, &s.OilGrade, &measurements,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if err := json.Unmarshal([]byte(measurements), &s.Measurements); err != nil {
			return nil, fmt.Errorf("failed to decode measurements for sample %s: %w", s.SampleID, err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// SeriesPoint is one dated measurement value for trend rendering.
type SeriesPoint struct {
	Date  time.Time
	Value float64
}

// MeasurementSeries extracts the dated value series of one essay for one
// (unit, component), ordered by date. Samples missing the essay are
// skipped.
func (db *DB) MeasurementSeries(ctx context.Context, tenant, unitID, component, essay string) ([]SeriesPoint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sample_date, measurements
		FROM samples
		WHERE tenant = ? AND unit_id = ? AND component_name = ?
		ORDER BY sample_date, sample_id
	`, tenant, unitID, component)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurement series: %w", err)
	}
	defer rows.Close()

	var series []SeriesPoint
	for rows.Next() {
		var date time.Time
		var raw string
		if err := rows.Scan(&date, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		var measurements map[string]float64
		if err := json.Unmarshal([]byte(raw), &measurements); err != nil {
			return nil, fmt.Errorf("failed to decode measurements: %w", err)
		}
		if v, ok := measurements[essay]; ok {
			series = append(series, SeriesPoint{Date: date, Value: v})
		}
	}
	return series, rows.Err()
}

// rollback rolls a transaction back, tolerating prior commit.
func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		// Nothing the caller can do; the connection will clean up.
		_ = err
	}
}
