package harmonize

import "testing"

func TestCleanValue(t *testing.T) {
	policy := LimitPolicy{BelowFraction: 0.5, AboveFactor: 2}

	tests := []struct {
		name    string
		raw     string
		want    float64
		ok      bool
		wantErr bool
	}{
		{"plain", "12.5", 12.5, true, false},
		{"decimal comma", "12,5", 12.5, true, false},
		{"absent empty", "", 0, false, false},
		{"absent dash", "-", 0, false, false},
		{"absent padded dash", "  -  ", 0, false, false},
		{"below limit", "<0.05", 0.025, true, false},
		{"below limit spaced", "< 4", 2, true, false},
		{"above limit", ">0.05", 0.1, true, false},
		{"above limit comma", ">1,5", 3, true, false},
		{"zero", "0", 0, true, false},
		{"garbage", "n/a", 0, false, true},
		{"double prefix", "<<3", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := cleanValue(tt.raw, policy)
			if (err != nil) != tt.wantErr {
				t.Fatalf("cleanValue(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if ok != tt.ok || got != tt.want {
				t.Errorf("cleanValue(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// The censoring policy differs per lab: ALS reads "<X" as zero.
func TestCleanValueCensoringPolicy(t *testing.T) {
	als := LimitPolicy{BelowFraction: 0, AboveFactor: 2}
	got, ok, err := cleanValue("<0.05", als)
	if err != nil || !ok || got != 0 {
		t.Errorf("cleanValue(<0.05) = (%v, %v, %v), want (0, true, nil)", got, ok, err)
	}
}

func TestCleanHours(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"12000", 12000},
		{"12000,5", 12000.5},
		{"", 0},
		{"-", 0},
		{"abc", 0},
		{"-40", 0},
	}
	for _, tt := range tests {
		if got := cleanHours(tt.raw); got != tt.want {
			t.Errorf("cleanHours(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestCanonicalUnitID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"CAM-101", "cam_101"},
		{"cam_101", "cam_101"},
		{"  PAL-7 ", "pal_7"},
	}
	for _, tt := range tests {
		if got := canonicalUnitID(tt.raw); got != tt.want {
			t.Errorf("canonicalUnitID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
