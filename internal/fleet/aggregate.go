// Package fleet rolls classified reports up to machine-level health.
package fleet

import (
	"fmt"
	"sort"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// Bands are the machine score cutoffs over summed component weights:
// total < Alert is Normal, total >= Abnormal is Abnormal, between is Alert.
type Bands struct {
	Alert    int
	Abnormal int
}

// DefaultBands is the standard 2/4 scheme.
var DefaultBands = Bands{Alert: 2, Abnormal: 4}

// Aggregate reduces a unit's report classifications to its machine status.
// Within each component the single latest report wins (ties broken by
// higher score, then by sample id, so reruns are deterministic). The result
// is derivable purely from the reports passed in; no state survives between
// runs.
func Aggregate(tenant, unitID string, reports []oil.Report, bands Bands) (oil.MachineStatus, error) {
	latest := make(map[string]oil.Report)
	for _, r := range reports {
		if r.Sample.Tenant != tenant || r.Sample.UnitID != unitID {
			continue
		}
		cur, ok := latest[r.Sample.ComponentName]
		if !ok || newer(r, cur) {
			latest[r.Sample.ComponentName] = r
		}
	}
	if len(latest) == 0 {
		return oil.MachineStatus{}, fmt.Errorf("fleet: no reports for unit %s/%s", tenant, unitID)
	}

	status := oil.MachineStatus{Tenant: tenant, UnitID: unitID}
	for component, r := range latest {
		status.TotalNumericStatus += oil.StatusWeight(r.Status)
		switch r.Status {
		case oil.StatusAlert:
			status.ComponentsAlert++
		case oil.StatusAbnormal:
			status.ComponentsAbnormal++
		default:
			status.ComponentsNormal++
		}
		if r.Sample.SampleDate.After(status.LastSampleDate) {
			status.LastSampleDate = r.Sample.SampleDate
		}
		status.Components = append(status.Components, oil.ComponentStatus{
			Component:  component,
			Status:     r.Status,
			Score:      r.Score,
			SampleID:   r.Sample.SampleID,
			SampleDate: r.Sample.SampleDate,
		})
	}
	sort.Slice(status.Components, func(i, j int) bool {
		return status.Components[i].Component < status.Components[j].Component
	})

	switch {
	case status.TotalNumericStatus < bands.Alert:
		status.Status = oil.StatusNormal
	case status.TotalNumericStatus >= bands.Abnormal:
		status.Status = oil.StatusAbnormal
	default:
		status.Status = oil.StatusAlert
	}
	return status, nil
}

// newer reports whether a should replace b as a component's current report.
func newer(a, b oil.Report) bool {
	if !a.Sample.SampleDate.Equal(b.Sample.SampleDate) {
		return a.Sample.SampleDate.After(b.Sample.SampleDate)
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Sample.SampleID > b.Sample.SampleID
}
