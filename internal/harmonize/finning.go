package harmonize

import (
	"fmt"
	"sort"
	"time"

	"github.com/mineoil-data/fleet.report/internal/monitoring"
	"github.com/mineoil-data/fleet.report/internal/names"
	"github.com/mineoil-data/fleet.report/internal/oil"
)

// Finning source field names. The dealer lab exports one column per essay
// (wide layout) with Spanish metadata headers.
const (
	finningFieldUnitID          = "ID de equipo"
	finningFieldSampleID        = "No. de control de laboratorio"
	finningFieldMachineSerial   = "No. de serie del equipo"
	finningFieldComponentSerial = "Component Serial Number"
	finningFieldComponent       = "Compartimento"
	finningFieldModel           = "Model"
	finningFieldMachineHours    = "Horas"
	finningFieldComponentHours  = "Component Meter"
	finningFieldOilBrand        = "Fluid Brand"
	finningFieldOilType         = "Fluid Type"
	finningFieldOilGrade        = "Fluid Weight"
	finningFieldSampleDate      = "Fecha de Toma de Muestra"
)

// FinningAdapter harmonizes wide-format dealer-lab exports. Essay columns
// carry lab-specific short codes; only codes present in the essay lookup
// table are kept, because a measurement outside the canonical vocabulary
// cannot be thresholded meaningfully.
//
// Detection-limit policy: "<X" is read as half the detection limit and ">X"
// as the limit itself (BelowFraction 0.5, AboveFactor 1.0).
type FinningAdapter struct {
	Tenant string
	// Essays maps lab essay codes to canonical measurement names.
	Essays map[string]string
	// Models maps machine model codes to machine-type names.
	Models map[string]string
	// Brand is stamped on every sample; the dealer lab serves one brand.
	Brand string

	Limits     LimitPolicy
	Machines   *names.Reducer
	Components *names.Reducer
	BrandNames *names.Reducer

	// Now is the ingestion clock, overridable in tests.
	Now func() time.Time
}

// NewFinningAdapter builds the adapter with the default reducers and limit
// policy for the given tenant.
func NewFinningAdapter(tenant string, essays map[string]string) *FinningAdapter {
	return &FinningAdapter{
		Tenant:     tenant,
		Essays:     essays,
		Models:     map[string]string{"789c": "camion", "789d": "camion", "793f": "camion", "d10t": "bulldozer", "d11t": "bulldozer"},
		Brand:      "caterpillar",
		Limits:     LimitPolicy{BelowFraction: 0.5, AboveFactor: 1.0},
		Machines:   names.NewReducer(names.DefaultMachineTable()),
		Components: names.NewReducer(names.DefaultComponentTable()),
		BrandNames: names.NewReducer(names.DefaultBrandTable()),
		Now:        time.Now,
	}
}

func (a *FinningAdapter) Source() string { return "finning" }

// Harmonize converts a wide-format batch into canonical samples.
func (a *FinningAdapter) Harmonize(records []RawRecord) ([]oil.Sample, []Reject, error) {
	if len(a.Essays) == 0 {
		return nil, nil, fmt.Errorf("finning adapter: essay lookup table is empty")
	}
	if err := requireColumn(records, finningFieldSampleID); err != nil {
		return nil, nil, fmt.Errorf("finning adapter: %w", err)
	}

	now := a.Now()
	samples := make([]oil.Sample, 0, len(records))
	var rejects []Reject

	// Essay columns are visited in sorted code order so a batch always
	// harmonizes to the same output.
	codes := make([]string, 0, len(a.Essays))
	for code := range a.Essays {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for i, rec := range records {
		sampleID := rec[finningFieldSampleID]
		if sampleID == "" {
			rejects = append(rejects, Reject{Index: i, Reason: ReasonMissingSampleID})
			continue
		}

		date, reason, err := parseSampleDate(rec[finningFieldSampleDate], now)
		if err != nil {
			rejects = append(rejects, Reject{Index: i, SampleID: sampleID, Reason: reason, Detail: err.Error()})
			continue
		}

		machine, mapped := a.Machines.Normalize(a.Models[names.Fold(rec[finningFieldModel])])
		if !mapped && machine != "" {
			monitoring.Logf("harmonize[finning]: unmapped machine type %q (sample %s)", machine, sampleID)
		}
		component, mapped := a.Components.Normalize(rec[finningFieldComponent])
		if !mapped {
			monitoring.Logf("harmonize[finning]: unmapped component %q (sample %s)", component, sampleID)
		}
		brand, _ := a.BrandNames.Normalize(a.Brand)

		measurements := make(map[string]float64)
		duplicate := ""
		for _, code := range codes {
			essay := a.Essays[code]
			raw, present := rec[code]
			if !present {
				continue
			}
			v, ok, err := cleanValue(raw, a.Limits)
			if err != nil || !ok {
				if err != nil {
					monitoring.Logf("harmonize[finning]: dropping unparseable %s=%q (sample %s)", essay, raw, sampleID)
				}
				continue
			}
			if v < 0 {
				monitoring.Logf("harmonize[finning]: dropping negative %s=%v (sample %s)", essay, v, sampleID)
				continue
			}
			if _, exists := measurements[essay]; exists {
				// Two lab codes resolved to the same canonical measurement.
				// Picking a winner would be a silent overwrite.
				duplicate = essay
				break
			}
			measurements[essay] = v
		}
		if duplicate != "" {
			rejects = append(rejects, Reject{
				Index:    i,
				SampleID: sampleID,
				Reason:   ReasonDuplicateMeasurement,
				Detail:   fmt.Sprintf("duplicate measurement %q", duplicate),
			})
			continue
		}

		samples = append(samples, oil.Sample{
			Tenant:          a.Tenant,
			SampleID:        sampleID,
			SampleDate:      date,
			UnitID:          canonicalUnitID(rec[finningFieldUnitID]),
			MachineName:     machine,
			MachineModel:    names.Fold(rec[finningFieldModel]),
			MachineBrand:    brand,
			MachineHours:    cleanHours(rec[finningFieldMachineHours]),
			MachineSerial:   rec[finningFieldMachineSerial],
			ComponentName:   component,
			ComponentSerial: rec[finningFieldComponentSerial],
			ComponentHours:  cleanHours(rec[finningFieldComponentHours]),
			OilBrand:        names.Fold(rec[finningFieldOilBrand]),
			OilType:         names.Fold(rec[finningFieldOilType]),
			OilGrade:        names.Fold(rec[finningFieldOilGrade]),
			Measurements:    measurements,
		})
	}

	return samples, rejects, nil
}

// requireColumn fails when a required schema element is missing from every
// record of a non-empty batch, which signals a structurally wrong export
// rather than scattered bad rows.
func requireColumn(records []RawRecord, field string) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if _, ok := rec[field]; ok {
			return nil
		}
	}
	return fmt.Errorf("required column %q missing from every record", field)
}
