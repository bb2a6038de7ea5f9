// Package quality selects the sample population eligible for threshold
// calibration.
//
// Low-volume segments produce unstable percentiles, so they are excluded
// from calibration only. They are still classified and reported downstream
// against whatever thresholds exist.
package quality

import (
	"github.com/mineoil-data/fleet.report/internal/monitoring"
	"github.com/mineoil-data/fleet.report/internal/oil"
)

type tenantName struct {
	tenant string
	name   string
}

// Filter retains samples whose machine type and component each meet the
// minimum historical count within their tenant. Counting is tenant-scoped;
// one tenant's volume never qualifies another's segments.
func Filter(samples []oil.Sample, minMachine, minComponent int) []oil.Sample {
	machineCounts := make(map[tenantName]int)
	componentCounts := make(map[tenantName]int)
	for _, s := range samples {
		machineCounts[tenantName{s.Tenant, s.MachineName}]++
		componentCounts[tenantName{s.Tenant, s.ComponentName}]++
	}

	kept := make([]oil.Sample, 0, len(samples))
	for _, s := range samples {
		if machineCounts[tenantName{s.Tenant, s.MachineName}] < minMachine {
			continue
		}
		if componentCounts[tenantName{s.Tenant, s.ComponentName}] < minComponent {
			continue
		}
		kept = append(kept, s)
	}

	if dropped := len(samples) - len(kept); dropped > 0 {
		monitoring.Logf("quality: excluded %d of %d samples from calibration (min machine %d, min component %d)",
			dropped, len(samples), minMachine, minComponent)
	}
	return kept
}
