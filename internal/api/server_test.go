package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/mineoil-data/fleet.report/internal/oil"
	"github.com/mineoil-data/fleet.report/internal/store"
	"github.com/mineoil-data/fleet.report/internal/testutil"
)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemoryDB()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewServer(db), db
}

func seedStatuses(t *testing.T, db *store.DB) {
	t.Helper()
	statuses := []oil.MachineStatus{
		{Tenant: "t1", UnitID: "cam_101", Status: oil.StatusNormal, TotalNumericStatus: 0, LastSampleDate: testutil.Date(2026, 5, 10)},
		{Tenant: "t1", UnitID: "cam_102", Status: oil.StatusAbnormal, TotalNumericStatus: 4, LastSampleDate: testutil.Date(2026, 5, 9)},
		{Tenant: "t1", UnitID: "cam_103", Status: oil.StatusAlert, TotalNumericStatus: 2, LastSampleDate: testutil.Date(2026, 5, 8)},
	}
	if err := db.ReplaceMachineStatuses(testutil.NewTestRequest("GET", "/").Context(), "t1", statuses); err != nil {
		t.Fatalf("seed statuses: %v", err)
	}
}

func TestTenantParameterRequired(t *testing.T) {
	srv, _ := testServer(t)
	mux := srv.ServeMux()

	for _, path := range []string{"/api/machines", "/api/priority", "/api/thresholds", "/api/report", "/fleet"} {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, path))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
}

func TestListMachines(t *testing.T) {
	srv, db := testServer(t)
	seedStatuses(t, db)
	mux := srv.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/machines?tenant=t1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got []oil.MachineStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d machines, want 3", len(got))
	}
	if got[0].UnitID != "cam_102" {
		t.Errorf("first machine = %s, want worst-first cam_102", got[0].UnitID)
	}
}

func TestListMachinesTenantIsolation(t *testing.T) {
	srv, db := testServer(t)
	seedStatuses(t, db)
	mux := srv.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/machines?tenant=t2"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got []oil.MachineStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("tenant t2 sees %d of t1's machines", len(got))
	}
}

func TestListPriorityLimit(t *testing.T) {
	srv, db := testServer(t)
	seedStatuses(t, db)
	mux := srv.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/priority?tenant=t1&limit=1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got []oil.MachineStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].UnitID != "cam_102" {
		t.Errorf("priority = %+v, want the worst machine only", got)
	}

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/priority?tenant=t1&limit=0"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

// The priority list carries machines requiring attention; Normal machines
// never appear, even when the limit leaves room for them.
func TestListPriorityExcludesNormal(t *testing.T) {
	srv, db := testServer(t)
	seedStatuses(t, db)
	mux := srv.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/priority?tenant=t1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got []oil.MachineStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].UnitID != "cam_102" || got[1].UnitID != "cam_103" {
		t.Fatalf("priority = %+v, want the two non-Normal machines", got)
	}
	for _, ms := range got {
		if ms.Status == oil.StatusNormal {
			t.Errorf("priority list contains Normal machine %s", ms.UnitID)
		}
	}
}

func TestListPriorityHealthyFleetIsEmpty(t *testing.T) {
	srv, db := testServer(t)
	mux := srv.ServeMux()

	healthy := []oil.MachineStatus{
		{Tenant: "t1", UnitID: "cam_101", Status: oil.StatusNormal, TotalNumericStatus: 0, LastSampleDate: testutil.Date(2026, 5, 10)},
	}
	if err := db.ReplaceMachineStatuses(testutil.NewTestRequest("GET", "/").Context(), "t1", healthy); err != nil {
		t.Fatalf("seed statuses: %v", err)
	}

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/priority?tenant=t1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got []oil.MachineStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("healthy fleet lists %d machines requiring attention: %+v", len(got), got)
	}
}

func TestShowReport(t *testing.T) {
	srv, db := testServer(t)
	mux := srv.ServeMux()

	report := oil.Report{
		Sample: testutil.Sample("t1", "LAB-1", "cam_101", testutil.Date(2026, 5, 10), map[string]float64{"fierro": 42}),
		Score:  3,
		Status: oil.StatusAlert,
		Breached: []oil.EssayResult{
			{Essay: "fierro", Value: 42, Severity: oil.SeverityAlert, Points: 3, Limit: 30},
		},
	}
	if err := db.UpsertReports(testutil.NewTestRequest("GET", "/").Context(), []oil.Report{report}); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/report?tenant=t1&sample_id=LAB-1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got store.StoredReport
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SampleID != "LAB-1" || got.Status != oil.StatusAlert || len(got.Breached) != 1 {
		t.Errorf("report = %+v", got)
	}

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/report?tenant=t1&sample_id=nope"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/report?tenant=t1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)
	mux := srv.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/machines?tenant=t1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestFleetHealthChart(t *testing.T) {
	srv, db := testServer(t)
	seedStatuses(t, db)
	mux := srv.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/fleet?tenant=t1"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "cam_102") {
		t.Error("chart body missing unit ids")
	}

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/fleet?tenant=empty"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}
