// Package pipeline drives the batch stages end to end: raw records →
// canonical samples ("harmonize"), samples → thresholds ("limits") and
// samples → classified reports, recommendations and machine statuses
// ("classify").
//
// Every stage is tenant-scoped. Tenants can be processed in parallel with
// zero coordination; nothing here shares mutable state across tenants
// beyond the snapshot store, which swaps whole immutable snapshots.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mineoil-data/fleet.report/internal/classify"
	"github.com/mineoil-data/fleet.report/internal/config"
	"github.com/mineoil-data/fleet.report/internal/fleet"
	"github.com/mineoil-data/fleet.report/internal/harmonize"
	"github.com/mineoil-data/fleet.report/internal/monitoring"
	"github.com/mineoil-data/fleet.report/internal/oil"
	"github.com/mineoil-data/fleet.report/internal/quality"
	"github.com/mineoil-data/fleet.report/internal/recommend"
	"github.com/mineoil-data/fleet.report/internal/stewart"
	"github.com/mineoil-data/fleet.report/internal/store"
)

// Pipeline owns the engine's collaborators for one process.
type Pipeline struct {
	Store      *store.DB
	Settings   *config.Settings
	Thresholds *stewart.Store
	// Orchestrator may be nil, in which case classification leaves
	// recommendation fields pending.
	Orchestrator *recommend.Orchestrator

	// Now is the pipeline clock, overridable in tests.
	Now func() time.Time
}

// New wires a pipeline with an empty snapshot store.
func New(db *store.DB, settings *config.Settings) *Pipeline {
	return &Pipeline{
		Store:      db,
		Settings:   settings,
		Thresholds: stewart.NewStore(),
		Now:        time.Now,
	}
}

// HarmonizeSummary is the batch-level accounting for one harmonization run.
// Silent partial failure is disallowed: every rejected row is counted under
// its reason code.
type HarmonizeSummary struct {
	RunID         string                         `json:"run_id"`
	Tenant        string                         `json:"tenant"`
	Source        string                         `json:"source"`
	Accepted      int                            `json:"accepted"`
	Rejected      int                            `json:"rejected"`
	RejectReasons map[harmonize.RejectReason]int `json:"reject_reasons,omitempty"`
}

// Harmonize runs one adapter over a raw batch and persists the accepted
// samples. A duplicate sample id among the accepted samples is an engine
// invariant violation, not bad input, and fails the batch loudly.
func (p *Pipeline) Harmonize(ctx context.Context, adapter harmonize.Adapter, records []harmonize.RawRecord) (*HarmonizeSummary, []harmonize.Reject, error) {
	samples, rejects, err := adapter.Harmonize(records)
	if err != nil {
		return nil, nil, fmt.Errorf("harmonize[%s]: %w", adapter.Source(), err)
	}

	seen := make(map[string]struct{}, len(samples))
	tenant := ""
	for _, s := range samples {
		if _, dup := seen[s.SampleID]; dup {
			return nil, nil, fmt.Errorf("harmonize[%s]: duplicate sample id %q after harmonization", adapter.Source(), s.SampleID)
		}
		seen[s.SampleID] = struct{}{}
		tenant = s.Tenant
	}

	if err := p.Store.UpsertSamples(ctx, samples); err != nil {
		return nil, nil, fmt.Errorf("harmonize[%s]: %w", adapter.Source(), err)
	}

	summary := &HarmonizeSummary{
		RunID:    uuid.NewString(),
		Tenant:   tenant,
		Source:   adapter.Source(),
		Accepted: len(samples),
		Rejected: len(rejects),
	}
	if len(rejects) > 0 {
		summary.RejectReasons = make(map[harmonize.RejectReason]int)
		for _, r := range rejects {
			summary.RejectReasons[r.Reason]++
		}
	}
	monitoring.Logf("pipeline: harmonized %s batch for %s: %d accepted, %d rejected",
		adapter.Source(), tenant, summary.Accepted, summary.Rejected)
	return summary, rejects, nil
}

// LimitsSummary is the accounting for one threshold recompute.
type LimitsSummary struct {
	RunID              string `json:"run_id"`
	Tenant             string `json:"tenant"`
	CalibrationSamples int    `json:"calibration_samples"`
	Groups             int    `json:"groups"`
	SkippedGroups      int    `json:"skipped_groups"`
}

// ComputeLimits recalibrates a tenant's full threshold collection from its
// eligible history and swaps the new snapshot in atomically. The
// computation is always wholesale; scheduling (weekly, growth-triggered) is
// the caller's concern.
func (p *Pipeline) ComputeLimits(ctx context.Context, tenant string) (*LimitsSummary, error) {
	samples, err := p.Store.SamplesByTenant(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("limits[%s]: %w", tenant, err)
	}

	eligible := quality.Filter(samples,
		p.Settings.GetMinMachineSamples(), p.Settings.GetMinComponentSamples())

	pct := stewart.Percentiles{
		Normal:   p.Settings.GetPercentileNormal(),
		Alert:    p.Settings.GetPercentileAlert(),
		Critical: p.Settings.GetPercentileCritical(),
	}
	snap, skipped, err := stewart.Compute(tenant, eligible, pct, p.Now())
	if err != nil {
		return nil, fmt.Errorf("limits[%s]: %w", tenant, err)
	}

	if err := p.Store.ReplaceThresholds(ctx, tenant, snap.Sets()); err != nil {
		return nil, fmt.Errorf("limits[%s]: %w", tenant, err)
	}
	p.Thresholds.Swap(snap)

	summary := &LimitsSummary{
		RunID:              uuid.NewString(),
		Tenant:             tenant,
		CalibrationSamples: len(eligible),
		Groups:             snap.Len(),
		SkippedGroups:      len(skipped),
	}
	monitoring.Logf("pipeline: recomputed limits for %s: %d groups from %d samples, %d groups skipped for insufficient variance",
		tenant, summary.Groups, summary.CalibrationSamples, summary.SkippedGroups)
	return summary, nil
}

// ClassifySummary is the accounting for one classification run.
type ClassifySummary struct {
	RunID           string                   `json:"run_id"`
	Tenant          string                   `json:"tenant"`
	Reports         int                      `json:"reports"`
	ByStatus        map[oil.ReportStatus]int `json:"by_status"`
	Machines        int                      `json:"machines"`
	Recommendations recommend.Summary        `json:"recommendations"`
}

// Classify re-derives every report and machine status for a tenant from its
// canonical samples and the current threshold snapshot. When no snapshot
// has been computed this process, the persisted thresholds are loaded;
// a tenant with no thresholds at all classifies everything as
// unclassifiable, never as passing Normal by default of zero thresholds.
func (p *Pipeline) Classify(ctx context.Context, tenant string) (*ClassifySummary, error) {
	samples, err := p.Store.SamplesByTenant(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("classify[%s]: %w", tenant, err)
	}

	snap := p.Thresholds.Current(tenant)
	if snap == nil {
		sets, err := p.Store.ThresholdsByTenant(ctx, tenant)
		if err != nil {
			return nil, fmt.Errorf("classify[%s]: %w", tenant, err)
		}
		snap = stewart.FromSets(tenant, sets)
		p.Thresholds.Swap(snap)
	}

	pts := classify.Points{
		Marginal: p.Settings.GetPointsMarginal(),
		Alert:    p.Settings.GetPointsAlert(),
		Critical: p.Settings.GetPointsCritical(),
	}
	bands := classify.Bands{
		Alert:    p.Settings.GetReportAlertScore(),
		Abnormal: p.Settings.GetReportAbnormalScore(),
	}

	reports := make([]*oil.Report, 0, len(samples))
	byStatus := make(map[oil.ReportStatus]int)
	for _, s := range samples {
		r, err := classify.Report(s, snap, pts, bands)
		if err != nil {
			return nil, fmt.Errorf("classify[%s]: %w", tenant, err)
		}
		reports = append(reports, &r)
		byStatus[r.Status]++
	}

	var recSummary recommend.Summary
	if p.Orchestrator != nil {
		recSummary = p.Orchestrator.Run(ctx, reports)
	}

	flat := make([]oil.Report, len(reports))
	byUnit := make(map[string][]oil.Report)
	for i, r := range reports {
		flat[i] = *r
		byUnit[r.Sample.UnitID] = append(byUnit[r.Sample.UnitID], *r)
	}
	if err := p.Store.UpsertReports(ctx, flat); err != nil {
		return nil, fmt.Errorf("classify[%s]: %w", tenant, err)
	}

	machineBands := fleet.Bands{
		Alert:    p.Settings.GetMachineAlertScore(),
		Abnormal: p.Settings.GetMachineAbnormalScore(),
	}
	statuses := make([]oil.MachineStatus, 0, len(byUnit))
	for unitID, unitReports := range byUnit {
		ms, err := fleet.Aggregate(tenant, unitID, unitReports, machineBands)
		if err != nil {
			return nil, fmt.Errorf("classify[%s]: %w", tenant, err)
		}
		statuses = append(statuses, ms)
	}
	if err := p.Store.ReplaceMachineStatuses(ctx, tenant, statuses); err != nil {
		return nil, fmt.Errorf("classify[%s]: %w", tenant, err)
	}

	summary := &ClassifySummary{
		RunID:           uuid.NewString(),
		Tenant:          tenant,
		Reports:         len(flat),
		ByStatus:        byStatus,
		Machines:        len(statuses),
		Recommendations: recSummary,
	}
	monitoring.Logf("pipeline: classified %d reports for %s across %d machines (%d Normal, %d Alert, %d Abnormal)",
		summary.Reports, tenant, summary.Machines,
		byStatus[oil.StatusNormal], byStatus[oil.StatusAlert], byStatus[oil.StatusAbnormal])
	return summary, nil
}

// Run executes limits then classification for one tenant.
func (p *Pipeline) Run(ctx context.Context, tenant string) (*LimitsSummary, *ClassifySummary, error) {
	limits, err := p.ComputeLimits(ctx, tenant)
	if err != nil {
		return nil, nil, err
	}
	classified, err := p.Classify(ctx, tenant)
	if err != nil {
		return limits, nil, err
	}
	return limits, classified, nil
}
