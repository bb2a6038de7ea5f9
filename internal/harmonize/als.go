package harmonize

import (
	"fmt"
	"time"

	"github.com/mineoil-data/fleet.report/internal/monitoring"
	"github.com/mineoil-data/fleet.report/internal/names"
	"github.com/mineoil-data/fleet.report/internal/oil"
)

// ALS source field names. The lab exports measurements in long form:
// parallel testElementName<i>/testElementValue<i> column pairs.
const (
	alsFieldSampleID        = "sampleNumber"
	alsFieldUnitID          = "equipment_tag"
	alsFieldSampleDate      = "collectionData_dateSampled"
	alsFieldMachineName     = "equipment_family_name"
	alsFieldMachineModel    = "equipment_model"
	alsFieldMachineBrand    = "equipment_maker_name"
	alsFieldMachineHours    = "equipment_time"
	alsFieldMachineSerial   = "equipment_serial"
	alsFieldComponent       = "compartment_name"
	alsFieldComponentSerial = "compartment_id"
	alsFieldComponentHours  = "collectionData_fluidTime"
	alsFieldOilBrand        = "collectionData_oil_manufacturer_name"
	alsFieldOilType         = "collectionData_oil_type_name"
	alsFieldOilGrade        = "collectionData_oil_viscosity_name"

	alsNamePrefix  = "testElementName"
	alsValuePrefix = "testElementValue"

	// alsMaxElements bounds the positional scan over name/value pairs.
	alsMaxElements = 200
)

// ALSAdapter harmonizes long-format ALS laboratory exports. Name/value
// columns are paired positionally, pairs with a blank name are dropped, and
// the result is pivoted into one sample row with one entry per distinct
// measurement. A duplicate (sample, measurement) pair is a rejection, not a
// silent overwrite.
//
// Detection-limit policy follows the lab's historical convention: "<X" is
// read as zero (below-limit values are censored) and ">X" as twice the limit
// (BelowFraction 0, AboveFactor 2).
type ALSAdapter struct {
	Tenant string
	// Essays maps lab-reported test names (folded) to canonical
	// measurement names.
	Essays map[string]string

	Limits     LimitPolicy
	Machines   *names.Reducer
	Components *names.Reducer
	Brands     *names.Reducer

	Now func() time.Time
}

// NewALSAdapter builds the adapter with the default reducers and limit
// policy for the given tenant.
func NewALSAdapter(tenant string, essays map[string]string) *ALSAdapter {
	return &ALSAdapter{
		Tenant:     tenant,
		Essays:     essays,
		Limits:     LimitPolicy{BelowFraction: 0, AboveFactor: 2},
		Machines:   names.NewReducer(names.DefaultMachineTable()),
		Components: names.NewReducer(names.DefaultComponentTable()),
		Brands:     names.NewReducer(names.DefaultBrandTable()),
		Now:        time.Now,
	}
}

func (a *ALSAdapter) Source() string { return "als" }

// Harmonize unpivots a long-format batch into canonical samples.
func (a *ALSAdapter) Harmonize(records []RawRecord) ([]oil.Sample, []Reject, error) {
	if len(a.Essays) == 0 {
		return nil, nil, fmt.Errorf("als adapter: essay lookup table is empty")
	}
	if err := requireColumn(records, alsFieldSampleID); err != nil {
		return nil, nil, fmt.Errorf("als adapter: %w", err)
	}

	now := a.Now()
	samples := make([]oil.Sample, 0, len(records))
	var rejects []Reject

	for i, rec := range records {
		sampleID := rec[alsFieldSampleID]
		if sampleID == "" {
			rejects = append(rejects, Reject{Index: i, Reason: ReasonMissingSampleID})
			continue
		}

		date, reason, err := parseSampleDate(rec[alsFieldSampleDate], now)
		if err != nil {
			rejects = append(rejects, Reject{Index: i, SampleID: sampleID, Reason: reason, Detail: err.Error()})
			continue
		}

		measurements, dup := a.unpivot(rec, sampleID)
		if dup != "" {
			rejects = append(rejects, Reject{
				Index:    i,
				SampleID: sampleID,
				Reason:   ReasonDuplicateMeasurement,
				Detail:   fmt.Sprintf("duplicate measurement %q", dup),
			})
			continue
		}

		machine, mapped := a.Machines.Normalize(rec[alsFieldMachineName])
		if !mapped && machine != "" {
			monitoring.Logf("harmonize[als]: unmapped machine type %q (sample %s)", machine, sampleID)
		}
		component, mapped := a.Components.Normalize(rec[alsFieldComponent])
		if !mapped {
			monitoring.Logf("harmonize[als]: unmapped component %q (sample %s)", component, sampleID)
		}
		brand, _ := a.Brands.Normalize(rec[alsFieldMachineBrand])

		samples = append(samples, oil.Sample{
			Tenant:          a.Tenant,
			SampleID:        sampleID,
			SampleDate:      date,
			UnitID:          canonicalUnitID(rec[alsFieldUnitID]),
			MachineName:     machine,
			MachineModel:    names.Fold(rec[alsFieldMachineModel]),
			MachineBrand:    brand,
			MachineHours:    cleanHours(rec[alsFieldMachineHours]),
			MachineSerial:   rec[alsFieldMachineSerial],
			ComponentName:   component,
			ComponentSerial: rec[alsFieldComponentSerial],
			ComponentHours:  cleanHours(rec[alsFieldComponentHours]),
			OilBrand:        names.Fold(rec[alsFieldOilBrand]),
			OilType:         names.Fold(rec[alsFieldOilType]),
			OilGrade:        names.Fold(rec[alsFieldOilGrade]),
			Measurements:    measurements,
		})
	}

	return samples, rejects, nil
}

// unpivot pairs name/value columns positionally and pivots them into a
// measurement map. Returns the offending canonical name when the same
// measurement appears twice for one sample.
func (a *ALSAdapter) unpivot(rec RawRecord, sampleID string) (map[string]float64, string) {
	measurements := make(map[string]float64)
	for n := 1; n <= alsMaxElements; n++ {
		name, present := rec[fmt.Sprintf("%s%d", alsNamePrefix, n)]
		if !present {
			break
		}
		if names.Fold(name) == "" {
			// Blank test slots are padding in the export.
			continue
		}
		essay, known := a.Essays[names.Fold(name)]
		if !known {
			monitoring.Logf("harmonize[als]: dropping unrecognized essay %q (sample %s)", name, sampleID)
			continue
		}

		raw := rec[fmt.Sprintf("%s%d", alsValuePrefix, n)]
		v, ok, err := cleanValue(raw, a.Limits)
		if err != nil || !ok {
			if err != nil {
				monitoring.Logf("harmonize[als]: dropping unparseable %s=%q (sample %s)", essay, raw, sampleID)
			}
			continue
		}
		if v < 0 {
			monitoring.Logf("harmonize[als]: dropping negative %s=%v (sample %s)", essay, v, sampleID)
			continue
		}

		if _, exists := measurements[essay]; exists {
			return nil, essay
		}
		measurements[essay] = v
	}
	return measurements, ""
}
