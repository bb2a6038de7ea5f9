// Package harmonize maps source-specific laboratory exports onto the
// canonical sample schema.
//
// Each laboratory format gets its own Adapter. Adapters never raise for a
// single bad row: rows that fail required-field extraction come back on the
// reject list with a reason code while their siblings proceed. Only
// structurally unreadable input (a batch that cannot possibly be this
// format) is an error.
package harmonize

import (
	"fmt"
	"time"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// RawRecord is one decoded row from the out-of-scope ingestion layer: source
// field name → raw textual value. Spreadsheet and columnar decoding happen
// upstream; adapters only reconcile schemas.
type RawRecord map[string]string

// RejectReason is the machine-readable code attached to a rejected row.
type RejectReason string

const (
	ReasonMissingSampleID      RejectReason = "missing_sample_id"
	ReasonMissingSampleDate    RejectReason = "missing_sample_date"
	ReasonBadSampleDate        RejectReason = "bad_sample_date"
	ReasonFutureSampleDate     RejectReason = "future_sample_date"
	ReasonDuplicateMeasurement RejectReason = "duplicate_measurement"
)

// Reject records one row that could not be harmonized.
type Reject struct {
	Index    int          `json:"index"`
	SampleID string       `json:"sample_id,omitempty"`
	Reason   RejectReason `json:"reason"`
	Detail   string       `json:"detail,omitempty"`
}

// Adapter harmonizes one laboratory's raw export format.
type Adapter interface {
	// Source names the lab format, used in logs and batch summaries.
	Source() string
	// Harmonize converts a raw batch into canonical samples plus the list
	// of rejected rows. The error return is reserved for structurally
	// unreadable input; row-level problems never abort the batch.
	Harmonize(records []RawRecord) ([]oil.Sample, []Reject, error)
}

// dateLayouts are tried in order when parsing sample dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"02/01/2006",
}

// parseSampleDate parses a raw date string and enforces that sample dates
// are not in the future relative to ingestion time.
func parseSampleDate(raw string, now time.Time) (time.Time, RejectReason, error) {
	if raw == "" {
		return time.Time{}, ReasonMissingSampleDate, fmt.Errorf("sample date is empty")
	}
	var parsed time.Time
	var err error
	for _, layout := range dateLayouts {
		parsed, err = time.Parse(layout, raw)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, ReasonBadSampleDate, fmt.Errorf("unparseable sample date %q", raw)
	}
	if parsed.After(now) {
		return time.Time{}, ReasonFutureSampleDate, fmt.Errorf("sample date %s is in the future", parsed.Format("2006-01-02"))
	}
	return parsed, "", nil
}
