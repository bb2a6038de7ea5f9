package store

import (
	"context"
	"fmt"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// ReplaceThresholds replaces the tenant's full threshold collection in one
// transaction: delete then insert, so readers either see the prior complete
// set or the new one, never a mix.
func (db *DB) ReplaceThresholds(ctx context.Context, tenant string, sets []oil.ThresholdSet) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM threshold_sets WHERE tenant = ?`, tenant); err != nil {
		return fmt.Errorf("failed to clear thresholds for %s: %w", tenant, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO threshold_sets (
			tenant, machine_name, component_name, essay,
			normal, alert, critical, sample_count, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare threshold insert: %w", err)
	}
	defer stmt.Close()

	for _, ts := range sets {
		if ts.Tenant != tenant {
			return fmt.Errorf("threshold set for tenant %s in replace for %s", ts.Tenant, tenant)
		}
		if _, err := stmt.ExecContext(ctx,
			ts.Tenant, ts.MachineName, ts.ComponentName, ts.Essay,
			ts.Normal, ts.Alert, ts.Critical, ts.SampleCount, ts.ComputedAt.UTC(),
		); err != nil {
			return fmt.Errorf("failed to insert threshold %s/%s/%s: %w",
				ts.MachineName, ts.ComponentName, ts.Essay, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thresholds: %w", err)
	}
	return nil
}

// ThresholdsByTenant returns the tenant's threshold sets in key order.
func (db *DB) ThresholdsByTenant(ctx context.Context, tenant string) ([]oil.ThresholdSet, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tenant, machine_name, component_name, essay,
		       normal, alert, critical, sample_count, computed_at
		FROM threshold_sets
		WHERE tenant = ?
		ORDER BY machine_name, component_name, essay
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	var sets []oil.ThresholdSet
	for rows.Next() {
		var ts oil.ThresholdSet
		if err := rows.Scan(
			&ts.Tenant, &ts.MachineName, &ts.ComponentName, &ts.Essay,
			&ts.Normal, &ts.Alert, &ts.Critical, &ts.SampleCount, &ts.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		sets = append(sets, ts)
	}
	return sets, rows.Err()
}
