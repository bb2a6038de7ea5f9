package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// ReplaceMachineStatuses replaces the tenant's machine-status projection
// wholesale, mirroring the aggregator's recompute-everything contract.
func (db *DB) ReplaceMachineStatuses(ctx context.Context, tenant string, statuses []oil.MachineStatus) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM machine_statuses WHERE tenant = ?`, tenant); err != nil {
		return fmt.Errorf("failed to clear machine statuses for %s: %w", tenant, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO machine_statuses (
			tenant, unit_id, status, total_numeric_status,
			components_normal, components_alert, components_abnormal,
			last_sample_date, components
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare machine status insert: %w", err)
	}
	defer stmt.Close()

	for _, ms := range statuses {
		if ms.Tenant != tenant {
			return fmt.Errorf("machine status for tenant %s in replace for %s", ms.Tenant, tenant)
		}
		components, err := json.Marshal(ms.Components)
		if err != nil {
			return fmt.Errorf("failed to encode components for unit %s: %w", ms.UnitID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			ms.Tenant, ms.UnitID, string(ms.Status), ms.TotalNumericStatus,
			ms.ComponentsNormal, ms.ComponentsAlert, ms.ComponentsAbnormal,
			ms.LastSampleDate.UTC(), string(components),
		); err != nil {
			return fmt.Errorf("failed to insert machine status for unit %s: %w", ms.UnitID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit machine statuses: %w", err)
	}
	return nil
}

// MachineStatusesByTenant returns the tenant's machine statuses ordered by
// descending severity then recency, the order the priority views use.
func (db *DB) MachineStatusesByTenant(ctx context.Context, tenant string) ([]oil.MachineStatus, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tenant, unit_id, status, total_numeric_status,
		       components_normal, components_alert, components_abnormal,
		       last_sample_date, components
		FROM machine_statuses
		WHERE tenant = ?
		ORDER BY total_numeric_status DESC, last_sample_date DESC, unit_id
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to query machine statuses: %w", err)
	}
	defer rows.Close()

	var statuses []oil.MachineStatus
	for rows.Next() {
		var ms oil.MachineStatus
		var components string
		if err := rows.Scan(
			&ms.Tenant, &ms.UnitID, &ms.Status, &ms.TotalNumericStatus,
			&ms.ComponentsNormal, &ms.ComponentsAlert, &ms.ComponentsAbnormal,
			&ms.LastSampleDate, &components,
		); err != nil {
			return nil, fmt.Errorf("failed to scan machine status: %w", err)
		}
		if err := json.Unmarshal([]byte(components), &ms.Components); err != nil {
			return nil, fmt.Errorf("failed to decode components for unit %s: %w", ms.UnitID, err)
		}
		statuses = append(statuses, ms)
	}
	return statuses, rows.Err()
}
