// Package stewart computes the three-tier percentile thresholds (Stewart
// limits) used to classify essay measurements, and holds them in immutable
// per-tenant snapshots.
package stewart

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// Key addresses one threshold group inside a tenant's snapshot.
type Key struct {
	MachineName   string
	ComponentName string
	Essay         string
}

// Percentiles are the three quantiles (0..100) backing the limits.
type Percentiles struct {
	Normal   float64
	Alert    float64
	Critical float64
}

// DefaultPercentiles is the standard Stewart configuration.
var DefaultPercentiles = Percentiles{Normal: 90, Alert: 95, Critical: 98}

// MinDistinctValues is the variance floor: a group whose value series has
// this many or fewer distinct values is skipped, since its percentiles would
// be meaningless.
const MinDistinctValues = 3

// SkippedGroup records one group excluded for insufficient variance.
type SkippedGroup struct {
	Key      Key
	Distinct int
}

// Compute derives a fresh threshold snapshot for one tenant from its full
// eligible sample population. Samples belonging to other tenants are ignored
// outright: no tenant's distribution may influence another's thresholds.
//
// Per group, null measurements are already absent from the samples and exact
// zeros are dropped as instrument artifacts. Percentiles are rounded up to
// the next integer, a deliberate conservative bias, then forced strictly
// monotonic.
func Compute(tenant string, samples []oil.Sample, pct Percentiles, now time.Time) (*Snapshot, []SkippedGroup, error) {
	series := make(map[Key][]float64)
	for _, s := range samples {
		if s.Tenant != tenant {
			continue
		}
		for essay, v := range s.Measurements {
			if v == 0 {
				continue
			}
			k := Key{MachineName: s.MachineName, ComponentName: s.ComponentName, Essay: essay}
			series[k] = append(series[k], v)
		}
	}

	sets := make(map[Key]oil.ThresholdSet, len(series))
	var skipped []SkippedGroup
	for k, values := range series {
		if d := distinct(values); d <= MinDistinctValues {
			skipped = append(skipped, SkippedGroup{Key: k, Distinct: d})
			continue
		}

		sort.Float64s(values)
		normal := math.Ceil(stat.Quantile(pct.Normal/100, stat.LinInterp, values, nil))
		alert := math.Ceil(stat.Quantile(pct.Alert/100, stat.LinInterp, values, nil))
		critical := math.Ceil(stat.Quantile(pct.Critical/100, stat.LinInterp, values, nil))

		// Force three distinct increasing thresholds even when the
		// distribution is nearly constant.
		if alert <= normal {
			alert = normal + 1
		}
		if critical <= alert {
			critical = alert + 1
		}
		if !(normal < alert && alert < critical) {
			return nil, nil, fmt.Errorf("stewart: non-monotonic thresholds for %s/%s/%s: %v %v %v",
				k.MachineName, k.ComponentName, k.Essay, normal, alert, critical)
		}

		sets[k] = oil.ThresholdSet{
			Tenant:        tenant,
			MachineName:   k.MachineName,
			ComponentName: k.ComponentName,
			Essay:         k.Essay,
			Normal:        normal,
			Alert:         alert,
			Critical:      critical,
			SampleCount:   len(values),
			ComputedAt:    now.UTC(),
		}
	}

	sort.Slice(skipped, func(i, j int) bool { return lessKey(skipped[i].Key, skipped[j].Key) })
	return &Snapshot{tenant: tenant, computedAt: now.UTC(), sets: sets}, skipped, nil
}

func distinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func lessKey(a, b Key) bool {
	if a.MachineName != b.MachineName {
		return a.MachineName < b.MachineName
	}
	if a.ComponentName != b.ComponentName {
		return a.ComponentName < b.ComponentName
	}
	return a.Essay < b.Essay
}
