// Package oil defines the canonical records shared by the harmonization,
// thresholding, classification and aggregation stages.
//
// Every record is tenant-scoped: no statistic or status may be derived from
// samples belonging to more than one tenant.
package oil

import "time"

// Sample is one laboratory report for one component at one point in time,
// harmonized from a source-specific raw record.
//
// Measurements is sparse: an essay the laboratory did not run is absent from
// the map, never stored as zero. Name fields are lowercase, accent-stripped
// and drawn from the reduced-cardinality vocabulary.
type Sample struct {
	Tenant          string             `json:"tenant"`
	SampleID        string             `json:"sample_id"`
	SampleDate      time.Time          `json:"sample_date"`
	UnitID          string             `json:"unit_id"`
	MachineName     string             `json:"machine_name"`
	MachineModel    string             `json:"machine_model"`
	MachineBrand    string             `json:"machine_brand"`
	MachineHours    float64            `json:"machine_hours"`
	MachineSerial   string             `json:"machine_serial"`
	ComponentName   string             `json:"component_name"`
	ComponentSerial string             `json:"component_serial"`
	ComponentHours  float64            `json:"component_hours"`
	OilBrand        string             `json:"oil_brand"`
	OilType         string             `json:"oil_type"`
	OilGrade        string             `json:"oil_grade"`
	Measurements    map[string]float64 `json:"measurements"`
}

// ThresholdSet holds the three Stewart limits for one
// (tenant, machine, component, essay) group, plus the number of samples the
// percentiles were computed from. Normal < Alert < Critical always holds
// strictly after monotonicity enforcement.
type ThresholdSet struct {
	Tenant        string    `json:"tenant"`
	MachineName   string    `json:"machine_name"`
	ComponentName string    `json:"component_name"`
	Essay         string    `json:"essay"`
	Normal        float64   `json:"normal"`
	Alert         float64   `json:"alert"`
	Critical      float64   `json:"critical"`
	SampleCount   int       `json:"sample_count"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Severity is the per-essay classification outcome.
type Severity string

const (
	SeverityNone           Severity = "none"
	SeverityMarginal       Severity = "marginal"
	SeverityAlert          Severity = "alert"
	SeverityCritical       Severity = "critical"
	SeverityUnclassifiable Severity = "unclassifiable"
)

// EssayResult is the classification of one measurement against its
// threshold set. Limit is the breached threshold value; it is zero when
// Severity is none or unclassifiable.
type EssayResult struct {
	Essay    string   `json:"essay"`
	Value    float64  `json:"value"`
	Severity Severity `json:"severity"`
	Points   int      `json:"points"`
	Limit    float64  `json:"limit"`
}

// ReportStatus is the report- and machine-level health band.
type ReportStatus string

const (
	StatusNormal   ReportStatus = "Normal"
	StatusAlert    ReportStatus = "Alert"
	StatusAbnormal ReportStatus = "Abnormal"
)

// Report owns one canonical sample plus its derived classification. The
// recommendation fields are backfilled asynchronously by the orchestrator;
// everything else is immutable once classified.
type Report struct {
	Sample               Sample        `json:"sample"`
	Score                int           `json:"score"`
	Breached             []EssayResult `json:"breached"`
	Status               ReportStatus  `json:"status"`
	Recommendation       string        `json:"recommendation,omitempty"`
	RecommendationAt     *time.Time    `json:"recommendation_at,omitempty"`
	RecommendationFailed bool          `json:"recommendation_failed,omitempty"`
}

// ComponentStatus is the current state of one monitored component of a unit,
// taken from the latest report for that component.
type ComponentStatus struct {
	Component  string       `json:"component"`
	Status     ReportStatus `json:"status"`
	Score      int          `json:"score"`
	SampleID   string       `json:"sample_id"`
	SampleDate time.Time    `json:"sample_date"`
}

// MachineStatus is a read-only projection over the latest report of each
// component of one unit. It is recomputed wholesale every aggregation run
// and holds no state beyond what the reports imply.
type MachineStatus struct {
	Tenant             string            `json:"tenant"`
	UnitID             string            `json:"unit_id"`
	Status             ReportStatus      `json:"status"`
	TotalNumericStatus int               `json:"total_numeric_status"`
	ComponentsNormal   int               `json:"components_normal"`
	ComponentsAlert    int               `json:"components_alert"`
	ComponentsAbnormal int               `json:"components_abnormal"`
	LastSampleDate     time.Time         `json:"last_sample_date"`
	Components         []ComponentStatus `json:"components"`
}

// StatusWeight maps a report status to its machine-aggregation weight.
func StatusWeight(s ReportStatus) int {
	switch s {
	case StatusAlert:
		return 1
	case StatusAbnormal:
		return 2
	default:
		return 0
	}
}
