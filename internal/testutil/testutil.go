// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Date builds a UTC date for fixtures.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Sample builds a canonical sample fixture with sensible defaults. The
// measurements map may be nil.
func Sample(tenant, sampleID, unitID string, date time.Time, measurements map[string]float64) oil.Sample {
	if measurements == nil {
		measurements = map[string]float64{}
	}
	return oil.Sample{
		Tenant:        tenant,
		SampleID:      sampleID,
		SampleDate:    date,
		UnitID:        unitID,
		MachineName:   "camion",
		MachineModel:  "789c",
		MachineBrand:  "caterpillar",
		ComponentName: "motor",
		Measurements:  measurements,
	}
}
