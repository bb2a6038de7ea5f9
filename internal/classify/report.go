package classify

import (
	"fmt"
	"sort"

	"github.com/mineoil-data/fleet.report/internal/oil"
	"github.com/mineoil-data/fleet.report/internal/stewart"
)

// Bands are the report score cutoffs: score < Alert is Normal, score >=
// Abnormal is Abnormal, anything between is Alert.
type Bands struct {
	Alert    int
	Abnormal int
}

// DefaultBands is the standard 3/5 scheme. Three Marginal breaches sum to 3
// points, which lands in the Alert band; Marginal breaches alone never
// reach Abnormal under the defaults.
var DefaultBands = Bands{Alert: 3, Abnormal: 5}

// Status maps a report score onto its band.
func Status(score int, bands Bands) oil.ReportStatus {
	switch {
	case score < bands.Alert:
		return oil.StatusNormal
	case score >= bands.Abnormal:
		return oil.StatusAbnormal
	default:
		return oil.StatusAlert
	}
}

// Report classifies every measurement of one sample against the tenant's
// threshold snapshot and derives the report-level status. snap may be nil
// (tenant never calibrated), in which case every measurement is
// unclassifiable and the report is Normal with an empty breached list.
//
// The breached list holds all measurements with points > 0, ordered by
// descending points, then descending value, then name.
func Report(sample oil.Sample, snap *stewart.Snapshot, pts Points, bands Bands) (oil.Report, error) {
	var breached []oil.EssayResult
	score := 0

	for _, name := range sortedEssays(sample.Measurements) {
		value := sample.Measurements[name]
		var ts oil.ThresholdSet
		ok := false
		if snap != nil {
			ts, ok = snap.Lookup(sample.MachineName, sample.ComponentName, name)
		}
		res := Essay(name, value, ts, ok, pts)
		score += res.Points
		if res.Points > 0 {
			breached = append(breached, res)
		}
	}

	if score < 0 {
		// Impossible with sane Points config; a negative score means the
		// engine itself is broken.
		return oil.Report{}, fmt.Errorf("classify: negative essay score %d for sample %s", score, sample.SampleID)
	}

	sort.SliceStable(breached, func(i, j int) bool {
		if breached[i].Points != breached[j].Points {
			return breached[i].Points > breached[j].Points
		}
		if breached[i].Value != breached[j].Value {
			return breached[i].Value > breached[j].Value
		}
		return breached[i].Essay < breached[j].Essay
	})

	return oil.Report{
		Sample:   sample,
		Score:    score,
		Breached: breached,
		Status:   Status(score, bands),
	}, nil
}

func sortedEssays(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
