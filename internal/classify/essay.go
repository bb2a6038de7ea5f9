// Package classify turns measurements into severities and samples into
// classified reports. Everything here is a pure function of its inputs:
// re-running on the same sample and threshold set yields byte-identical
// output, which is what makes reprocessing and backfill safe.
package classify

import "github.com/mineoil-data/fleet.report/internal/oil"

// Points maps each breached tier to its score contribution.
type Points struct {
	Marginal int
	Alert    int
	Critical int
}

// DefaultPoints is the standard 1/3/5 scheme.
var DefaultPoints = Points{Marginal: 1, Alert: 3, Critical: 5}

// Essay classifies one measurement value against its threshold set.
// Boundary values classify at the higher severity: value >= threshold
// breaches it. When the group has no threshold set (hasThresholds false)
// the value is unclassifiable and contributes no points; it is excluded
// from scoring, not treated as passing.
func Essay(name string, value float64, ts oil.ThresholdSet, hasThresholds bool, pts Points) oil.EssayResult {
	r := oil.EssayResult{Essay: name, Value: value}
	if !hasThresholds {
		r.Severity = oil.SeverityUnclassifiable
		return r
	}
	switch {
	case value >= ts.Critical:
		r.Severity = oil.SeverityCritical
		r.Points = pts.Critical
		r.Limit = ts.Critical
	case value >= ts.Alert:
		r.Severity = oil.SeverityAlert
		r.Points = pts.Alert
		r.Limit = ts.Alert
	case value >= ts.Normal:
		r.Severity = oil.SeverityMarginal
		r.Points = pts.Marginal
		r.Limit = ts.Normal
	default:
		r.Severity = oil.SeverityNone
	}
	return r
}
