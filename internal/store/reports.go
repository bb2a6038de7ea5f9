package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// UpsertReports writes report classifications in one transaction,
// overwriting any prior classification of the same sample id.
func (db *DB) UpsertReports(ctx context.Context, reports []oil.Report) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reports (
			tenant, sample_id, unit_id, component_name, sample_date,
			score, status, breached, recommendation, recommendation_at, recommendation_failed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant, sample_id) DO UPDATE SET
			unit_id = excluded.unit_id,
			component_name = excluded.component_name,
			sample_date = excluded.sample_date,
			score = excluded.score,
			status = excluded.status,
			breached = excluded.breached,
			recommendation = excluded.recommendation,
			recommendation_at = excluded.recommendation_at,
			recommendation_failed = excluded.recommendation_failed
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare report upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range reports {
		breached, err := json.Marshal(r.Breached)
		if err != nil {
			return fmt.Errorf("failed to encode breached list for %s: %w", r.Sample.SampleID, err)
		}
		var at sql.NullTime
		if r.RecommendationAt != nil {
			at = sql.NullTime{Time: r.RecommendationAt.UTC(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.Sample.Tenant, r.Sample.SampleID, r.Sample.UnitID, r.Sample.ComponentName,
			r.Sample.SampleDate.UTC(), r.Score, string(r.Status), string(breached),
			r.Recommendation, at, r.RecommendationFailed,
		); err != nil {
			return fmt.Errorf("failed to upsert report %s: %w", r.Sample.SampleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reports: %w", err)
	}
	return nil
}

// StoredReport is the persisted projection of a report classification.
// The full canonical sample lives in the samples table; reports carry only
// the lookup columns.
type StoredReport struct {
	Tenant               string            `json:"tenant"`
	SampleID             string            `json:"sample_id"`
	UnitID               string            `json:"unit_id"`
	ComponentName        string            `json:"component_name"`
	SampleDate           sql.NullTime      `json:"-"`
	Score                int               `json:"score"`
	Status               oil.ReportStatus  `json:"status"`
	Breached             []oil.EssayResult `json:"breached"`
	Recommendation       string            `json:"recommendation,omitempty"`
	RecommendationFailed bool              `json:"recommendation_failed,omitempty"`
}

// ReportBySample returns one stored report, or ErrNotFound.
func (db *DB) ReportBySample(ctx context.Context, tenant, sampleID string) (*StoredReport, error) {
	row := db.QueryRowContext(ctx, `
		SELECT tenant, sample_id, unit_id, component_name, sample_date,
		       score, status, breached, recommendation, recommendation_failed
		FROM reports
		WHERE tenant = ? AND sample_id = ?
	`, tenant, sampleID)

	var r StoredReport
	var breached string
	err := row.Scan(
		&r.Tenant, &r.SampleID, &r.UnitID, &r.ComponentName, &r.SampleDate,
		&r.Score, &r.Status, &breached, &r.Recommendation, &r.RecommendationFailed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", sampleID, err)
	}
	if err := json.Unmarshal([]byte(breached), &r.Breached); err != nil {
		return nil, fmt.Errorf("failed to decode breached list for %s: %w", sampleID, err)
	}
	return &r, nil
}
