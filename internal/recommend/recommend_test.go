package recommend

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// fakeGenerator counts calls and returns a fixed text or error.
type fakeGenerator struct {
	calls int64
	text  string
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	atomic.AddInt64(&g.calls, 1)
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func testReport(sampleID string, status oil.ReportStatus, breached []oil.EssayResult) *oil.Report {
	return &oil.Report{
		Sample: oil.Sample{
			Tenant:        "t1",
			SampleID:      sampleID,
			UnitID:        "cam_101",
			MachineName:   "camion",
			MachineModel:  "789c",
			ComponentName: "motor",
		},
		Status:   status,
		Breached: breached,
	}
}

func alertBreach() []oil.EssayResult {
	return []oil.EssayResult{
		{Essay: "fierro", Value: 42, Severity: oil.SeverityAlert, Points: 3, Limit: 30},
	}
}

func newTestOrchestrator(gen Generator) *Orchestrator {
	o := NewOrchestrator(gen, NewMemoryCache(), "todo en orden")
	o.Now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return o
}

// Normal reports get the canned message without a single external call.
func TestRunNormalReportsNeverCallGenerator(t *testing.T) {
	gen := &fakeGenerator{text: "should never appear"}
	o := newTestOrchestrator(gen)

	reports := []*oil.Report{
		testReport("s1", oil.StatusNormal, nil),
		testReport("s2", oil.StatusNormal, nil),
	}
	s := o.Run(context.Background(), reports)

	if got := atomic.LoadInt64(&gen.calls); got != 0 {
		t.Fatalf("generator called %d times for Normal reports, want 0", got)
	}
	if s.Canned != 2 || s.Generated != 0 {
		t.Errorf("summary = %+v, want 2 canned", s)
	}
	for _, r := range reports {
		if r.Recommendation != "todo en orden" {
			t.Errorf("recommendation = %q, want canned message", r.Recommendation)
		}
		if r.RecommendationAt == nil {
			t.Error("RecommendationAt not set")
		}
	}
}

func TestRunGeneratesForBreachedReports(t *testing.T) {
	gen := &fakeGenerator{text: "cambiar el aceite"}
	o := newTestOrchestrator(gen)

	r := testReport("s1", oil.StatusAlert, alertBreach())
	s := o.Run(context.Background(), []*oil.Report{r})

	if s.Generated != 1 {
		t.Fatalf("summary = %+v, want 1 generated", s)
	}
	if r.Recommendation != "cambiar el aceite" || r.RecommendationFailed {
		t.Errorf("report = %+v", r)
	}
}

// Identical breach patterns on the same component reuse the cached text.
func TestRunCacheHitSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{text: "cambiar el aceite"}
	o := newTestOrchestrator(gen)

	first := testReport("s1", oil.StatusAlert, alertBreach())
	o.Run(context.Background(), []*oil.Report{first})

	// Same component and breach set, different sample and reading.
	second := testReport("s2", oil.StatusAlert, []oil.EssayResult{
		{Essay: "fierro", Value: 55, Severity: oil.SeverityAlert, Points: 3, Limit: 30},
	})
	s := o.Run(context.Background(), []*oil.Report{second})

	if got := atomic.LoadInt64(&gen.calls); got != 1 {
		t.Fatalf("generator called %d times, want 1 (second served from cache)", got)
	}
	if s.Cached != 1 {
		t.Errorf("summary = %+v, want 1 cached", s)
	}
	if second.Recommendation != "cambiar el aceite" {
		t.Errorf("recommendation = %q, want cached text", second.Recommendation)
	}
}

// Generation failure leaves an explicit placeholder and failure flag,
// never a silent gap.
func TestRunFailureWritesPlaceholder(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	o := newTestOrchestrator(gen)

	r := testReport("s1", oil.StatusAbnormal, alertBreach())
	s := o.Run(context.Background(), []*oil.Report{r})

	if s.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", s)
	}
	if r.Recommendation != Placeholder || !r.RecommendationFailed {
		t.Errorf("report = %+v, want placeholder with failure flag", r)
	}
}

func TestRunSkipsInconsistentReports(t *testing.T) {
	gen := &fakeGenerator{text: "x"}
	o := newTestOrchestrator(gen)

	reports := []*oil.Report{
		testReport("", oil.StatusAlert, alertBreach()),   // missing sample id
		testReport("s2", oil.StatusAbnormal, nil),        // non-Normal with no breaches
		testReport("s3", oil.StatusAlert, alertBreach()), // fine
	}
	s := o.Run(context.Background(), reports)

	if s.Skipped != 2 || s.Generated != 1 {
		t.Errorf("summary = %+v, want 2 skipped, 1 generated", s)
	}
	if reports[0].Recommendation != "" || reports[1].Recommendation != "" {
		t.Error("skipped reports were written to")
	}
}

// A dead context stops dispatch outright: the external service is never
// called, nothing gets a placeholder, and every unhandled report is counted
// pending so the summary still covers the whole batch.
func TestRunCancelledContextLeavesPending(t *testing.T) {
	gen := &fakeGenerator{text: "x"}
	o := newTestOrchestrator(gen)
	o.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := []*oil.Report{
		testReport("s1", oil.StatusAlert, alertBreach()),
		testReport("s2", oil.StatusNormal, nil),
		testReport("s3", oil.StatusAbnormal, alertBreach()),
	}
	s := o.Run(ctx, reports)

	if got := atomic.LoadInt64(&gen.calls); got != 0 {
		t.Fatalf("generator called %d times on a cancelled context, want 0", got)
	}
	if s.Pending != 3 {
		t.Errorf("summary = %+v, want all 3 reports pending", s)
	}
	for _, r := range reports {
		if r.Recommendation != "" || r.RecommendationFailed {
			t.Errorf("cancelled run wrote to report %s: %+v", r.Sample.SampleID, r)
		}
	}
}

func TestCacheKey(t *testing.T) {
	a := []oil.EssayResult{
		{Essay: "fierro", Value: 42, Severity: oil.SeverityAlert},
		{Essay: "cobre", Value: 7, Severity: oil.SeverityMarginal},
	}
	b := []oil.EssayResult{
		{Essay: "cobre", Value: 9, Severity: oil.SeverityMarginal},
		{Essay: "fierro", Value: 99, Severity: oil.SeverityAlert},
	}

	// Order and raw readings must not matter; essay+severity must.
	if CacheKey("t1", "motor", a) != CacheKey("t1", "motor", b) {
		t.Error("cache key depends on order or values")
	}
	if CacheKey("t1", "motor", a) == CacheKey("t2", "motor", a) {
		t.Error("cache key ignores tenant")
	}
	if CacheKey("t1", "motor", a) == CacheKey("t1", "hidraulico", a) {
		t.Error("cache key ignores component")
	}

	c := []oil.EssayResult{
		{Essay: "fierro", Value: 42, Severity: oil.SeverityCritical},
		{Essay: "cobre", Value: 7, Severity: oil.SeverityMarginal},
	}
	if CacheKey("t1", "motor", a) == CacheKey("t1", "motor", c) {
		t.Error("cache key ignores severity")
	}
}

func TestBuildPrompt(t *testing.T) {
	req := Request{
		Tenant:       "t1",
		SampleID:     "s1",
		Component:    "motor",
		MachineName:  "camion",
		MachineModel: "789c",
		Breached: []oil.EssayResult{
			{Essay: "fierro", Value: 42, Severity: oil.SeverityAlert, Points: 3, Limit: 30},
		},
	}
	prompt := BuildPrompt(req)
	for _, want := range []string{"motor", "789C", "fierro", "42.0", "30.0", "limite transgredido"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get on empty cache = (%v, %v)", ok, err)
	}
	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	text, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || text != "v" {
		t.Errorf("Get = (%q, %v, %v), want (v, true, nil)", text, ok, err)
	}
}
