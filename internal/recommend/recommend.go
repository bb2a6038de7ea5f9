// Package recommend drives maintenance-recommendation generation for
// non-Normal reports through an external text-generation service.
//
// The fan-out is I/O bound: many independent requests issued under a
// bounded worker pool. Each worker writes only its own report's outcome, so
// no shared accumulator is touched concurrently.
package recommend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mineoil-data/fleet.report/internal/monitoring"
	"github.com/mineoil-data/fleet.report/internal/oil"
)

// Request is the payload contract with the text-generation collaborator.
type Request struct {
	Tenant       string            `json:"tenant"`
	SampleID     string            `json:"sample_id"`
	Component    string            `json:"component"`
	MachineName  string            `json:"machine_name"`
	MachineModel string            `json:"machine_model"`
	Breached     []oil.EssayResult `json:"breached"`
}

// Generator produces one recommendation text for one request. The returned
// text is bounded in length by the collaborator; retry and backoff inside a
// single call are the generator's own concern.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Placeholder is written to a report when generation fails after the
// generator's own retries are exhausted.
const Placeholder = "Recomendación no disponible: el servicio de generación no respondió. Se reintentará en la próxima corrida."

// Summary reports the batch outcome; silent partial failure is disallowed.
type Summary struct {
	Canned    int `json:"canned"`
	Cached    int `json:"cached"`
	Generated int `json:"generated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Pending   int `json:"pending"`
}

// Orchestrator owns the pool configuration and collaborators.
type Orchestrator struct {
	Generator     Generator
	Cache         Cache
	Workers       int
	NormalMessage string
	Timeout       time.Duration

	// Now is the generation clock, overridable in tests.
	Now func() time.Time
}

// NewOrchestrator wires an orchestrator with the default pool size.
func NewOrchestrator(gen Generator, cache Cache, normalMessage string) *Orchestrator {
	return &Orchestrator{
		Generator:     gen,
		Cache:         cache,
		Workers:       18,
		NormalMessage: normalMessage,
		Timeout:       30 * time.Second,
		Now:           time.Now,
	}
}

// Run fills recommendation fields on the given reports in place. Normal
// reports get the canned message without touching the external service.
// Non-Normal reports with an empty breached list are a data inconsistency:
// they are skipped and logged, never sent. If ctx is cancelled, in-flight
// requests finish but nothing new is dispatched; every report not yet
// handled is counted pending so the summary accounts for the whole batch.
func (o *Orchestrator) Run(ctx context.Context, reports []*oil.Report) Summary {
	var canned, cached, generated, failed, skipped, pending int64

	jobs := make(chan *oil.Report)
	var wg sync.WaitGroup
	workers := o.Workers
	if workers < 1 {
		workers = 1
	}
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				if o.generate(ctx, r) {
					atomic.AddInt64(&generated, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	now := o.Now().UTC()
dispatch:
	for i, r := range reports {
		// Checked before every report, not only inside the send, so a
		// free worker cannot win a select race against a dead context.
		if ctx.Err() != nil {
			atomic.AddInt64(&pending, int64(len(reports)-i))
			break dispatch
		}
		switch {
		case r.Sample.SampleID == "":
			monitoring.Logf("recommend: skipping report with missing sample id (unit %s)", r.Sample.UnitID)
			atomic.AddInt64(&skipped, 1)
		case r.Status == oil.StatusNormal:
			r.Recommendation = o.NormalMessage
			at := now
			r.RecommendationAt = &at
			atomic.AddInt64(&canned, 1)
		case len(r.Breached) == 0:
			monitoring.Logf("recommend: skipping inconsistent report %s: status %s with no breached measurements",
				r.Sample.SampleID, r.Status)
			atomic.AddInt64(&skipped, 1)
		default:
			if text, ok := o.cacheGet(ctx, r); ok {
				r.Recommendation = text
				at := now
				r.RecommendationAt = &at
				atomic.AddInt64(&cached, 1)
				continue
			}
			select {
			case jobs <- r:
			case <-ctx.Done():
				atomic.AddInt64(&pending, int64(len(reports)-i))
				break dispatch
			}
		}
	}
	close(jobs)
	wg.Wait()

	s := Summary{
		Canned:    int(canned),
		Cached:    int(cached),
		Generated: int(generated),
		Failed:    int(failed),
		Skipped:   int(skipped),
		Pending:   int(pending),
	}
	monitoring.Logf("recommend: batch done: %d canned, %d cached, %d generated, %d failed, %d skipped, %d pending",
		s.Canned, s.Cached, s.Generated, s.Failed, s.Skipped, s.Pending)
	return s
}

// generate performs one external call and writes the outcome to r alone.
// Reports true on success.
func (o *Orchestrator) generate(ctx context.Context, r *oil.Report) bool {
	reqCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	req := Request{
		Tenant:       r.Sample.Tenant,
		SampleID:     r.Sample.SampleID,
		Component:    r.Sample.ComponentName,
		MachineName:  r.Sample.MachineName,
		MachineModel: r.Sample.MachineModel,
		Breached:     r.Breached,
	}
	text, err := o.Generator.Generate(reqCtx, req)
	at := o.Now().UTC()
	if err != nil {
		monitoring.Logf("recommend: generation failed for sample %s: %v", r.Sample.SampleID, err)
		r.Recommendation = Placeholder
		r.RecommendationAt = &at
		r.RecommendationFailed = true
		return false
	}

	r.Recommendation = text
	r.RecommendationAt = &at
	o.cacheSet(ctx, r, text)
	return true
}

func (o *Orchestrator) cacheGet(ctx context.Context, r *oil.Report) (string, bool) {
	if o.Cache == nil {
		return "", false
	}
	key := CacheKey(r.Sample.Tenant, r.Sample.ComponentName, r.Breached)
	text, ok, err := o.Cache.Get(ctx, key)
	if err != nil {
		monitoring.Logf("recommend: cache get failed for %s: %v", key, err)
		return "", false
	}
	return text, ok
}

func (o *Orchestrator) cacheSet(ctx context.Context, r *oil.Report, text string) {
	if o.Cache == nil {
		return
	}
	key := CacheKey(r.Sample.Tenant, r.Sample.ComponentName, r.Breached)
	if err := o.Cache.Set(ctx, key, text); err != nil {
		monitoring.Logf("recommend: cache set failed for %s: %v", key, err)
	}
}
