package quality

import (
	"testing"
	"time"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

func sample(tenant, machine, component string) oil.Sample {
	return oil.Sample{
		Tenant:        tenant,
		SampleID:      "s",
		SampleDate:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		MachineName:   machine,
		ComponentName: component,
	}
}

func TestFilterDropsLowVolumeSegments(t *testing.T) {
	var samples []oil.Sample
	for range 5 {
		samples = append(samples, sample("t1", "camion", "motor"))
	}
	for range 2 {
		samples = append(samples, sample("t1", "perforadora", "motor"))
	}
	// Rare component on a common machine type.
	samples = append(samples, sample("t1", "camion", "winche"))

	kept := Filter(samples, 3, 3)
	if len(kept) != 5 {
		t.Fatalf("kept %d samples, want 5", len(kept))
	}
	for _, s := range kept {
		if s.MachineName != "camion" || s.ComponentName != "motor" {
			t.Errorf("kept unexpected segment %s/%s", s.MachineName, s.ComponentName)
		}
	}
}

// Volume counting is per tenant: three tenants with two samples each never
// add up to a qualifying six.
func TestFilterCountsPerTenant(t *testing.T) {
	var samples []oil.Sample
	for _, tenant := range []string{"t1", "t2", "t3"} {
		for range 2 {
			samples = append(samples, sample(tenant, "camion", "motor"))
		}
	}

	if kept := Filter(samples, 5, 5); len(kept) != 0 {
		t.Fatalf("kept %d cross-tenant samples, want 0", len(kept))
	}
}

func TestFilterZeroMinimumKeepsEverything(t *testing.T) {
	samples := []oil.Sample{sample("t1", "camion", "motor")}
	if kept := Filter(samples, 0, 0); len(kept) != 1 {
		t.Fatalf("kept %d, want 1", len(kept))
	}
}
