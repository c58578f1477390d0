package orchestrator

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/reconcrawl/internal/checkpoint"
	"github.com/kraklabs/reconcrawl/internal/family"
	"github.com/kraklabs/reconcrawl/internal/fetcher"
	"github.com/kraklabs/reconcrawl/internal/manifest"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/processor"
	"github.com/kraklabs/reconcrawl/internal/processor/apiproc"
	"github.com/kraklabs/reconcrawl/internal/processor/htmlproc"
	"github.com/kraklabs/reconcrawl/internal/processor/jsproc"
	"github.com/kraklabs/reconcrawl/internal/router"
	"github.com/kraklabs/reconcrawl/internal/scheduler"
	"github.com/kraklabs/reconcrawl/pkg/failure"
)

// Run executes the SELECT->FETCH->ROUTE->PROCESS state machine to
// completion (spec §4.14). It restores a prior checkpoint if one
// exists, otherwise seeds the frontier from config, and returns once
// ShouldStop fires, the frontier empties, or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) (RunResult, failure.ClassifiedError) {
	o.startedAt = time.Now()

	restored, err := o.restore()
	if err != nil {
		return RunResult{}, err
	}
	if !restored {
		o.seed()
	}

	stopReason := ""
	sinceCheckpoint := 0
	lastURL := ""

	pipeline := newFetchPipeline(o)
	stopping := false

loop:
	for {
		select {
		case <-ctx.Done():
			stopReason = "cancelled"
			break loop
		default:
		}

		if !stopping {
			if stop, reason := o.sched.ShouldStop(o.metrics()); stop {
				stopping = true
				stopReason = reason
			} else {
				pipeline.fill(ctx)
			}
		}

		outcome, ok := pipeline.next(ctx)
		if !ok {
			switch {
			case ctx.Err() != nil:
				stopReason = "cancelled"
			case !stopping:
				stopReason = "frontier_exhausted"
			}
			break loop
		}
		item := outcome.item
		lastURL = item.Canonical.String()

		o.counts.Fetches++
		if outcome.err != nil {
			o.counts.Errors++
			o.recordErrorTally("fetch")
			o.sched.MarkFailed(item, metadata.CauseNetworkFailure, outcome.err)
			sinceCheckpoint = o.maybeCheckpoint(lastURL, sinceCheckpoint)
			continue
		}
		resp := outcome.resp

		kind := router.Route(resp.ContentType, item.Canonical, o.includeExtensions)
		if kind == router.KindBinary {
			o.sched.MarkSkipped(item, "binary-skip")
			o.counts.Skipped++
			sinceCheckpoint = o.maybeCheckpoint(lastURL, sinceCheckpoint)
			continue
		}

		canonical := resp.FinalURL
		if canonical.String() == "" {
			canonical = item.Canonical
		}

		result, procErr := o.process(kind, item, canonical, resp)
		if procErr != nil {
			o.counts.Errors++
			o.recordErrorTally(string(kind))
			o.sched.MarkFailed(item, metadata.CauseContentInvalid, procErr)
			sinceCheckpoint = o.maybeCheckpoint(lastURL, sinceCheckpoint)
			continue
		}

		o.applyResult(kind, item, result)
		sinceCheckpoint = o.maybeCheckpoint(lastURL, sinceCheckpoint)

		if o.manifestBook.ShouldFlush(time.Now()) {
			o.flush("periodic")
		}
	}

	pipeline.drain()

	o.metadataSink.RecordStop(stopReason)
	o.flush("final")
	o.saveCheckpoint(lastURL)
	o.writeReport(stopReason)

	duration := time.Since(o.startedAt)
	o.metadataSink.RecordFinalCrawlStats(metadata.CrawlStats{
		TotalPages:    o.counts.Pages,
		TotalJS:       o.counts.JS,
		TotalAPI:      o.counts.API,
		TotalErrors:   o.counts.Errors,
		TotalSkipped:  o.counts.Skipped,
		TotalDuration: duration,
		StopReason:    stopReason,
	})

	if finalizer, ok := o.metadataSink.(metadata.CrawlFinalizer); ok {
		finalizer.Close()
	}
	o.manifestBook.Close()

	return RunResult{Stats: o.counts, StopReason: stopReason, Duration: duration}, nil
}

func (o *Orchestrator) seed() {
	for _, u := range o.cfg.SeedURLs() {
		o.sched.Enqueue(u.String(), nil, scheduler.Meta{Depth: 0, Reason: "seed"}, scheduler.EnqueueOptions{Force: true})
	}
}

// restore loads a prior checkpoint, re-enqueues its pending frontier,
// restores the prior budget counters, and rebuilds the Dedup Index's
// seen-set from the prior manifest.json (spec §4.13). Returns false
// (with a nil error) on a fresh run with no checkpoint on disk.
func (o *Orchestrator) restore() (bool, failure.ClassifiedError) {
	data, ok, err := o.cp.Load()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	checkpoint.Restore(o.sched, data)
	o.counts.Pages = data.Budget.Pages
	o.counts.JS = data.Budget.JS
	o.counts.API = data.Budget.API

	if prior, loaded := o.loadPriorManifest(); loaded {
		checkpoint.RebuildSeenSet(o.dedupIndex, prior)
	}
	return true, nil
}

func (o *Orchestrator) loadPriorManifest() (manifest.Document, bool) {
	raw, err := os.ReadFile(filepath.Join(o.outputRoot, "manifest.json"))
	if err != nil {
		return manifest.Document{}, false
	}
	var doc manifest.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return manifest.Document{}, false
	}
	return doc, true
}

// process dispatches a fetched response to the processor matching kind.
// KindBinary is filtered out by the caller before process is reached.
func (o *Orchestrator) process(kind router.Kind, item scheduler.WorkItem, canonical url.URL, resp fetcher.Response) (processor.Result, failure.ClassifiedError) {
	switch kind {
	case router.KindHTML:
		return o.htmlProc.Process(htmlproc.Input{
			OutputRoot: o.outputRoot,
			Canonical:  canonical,
			Body:       resp.Body,
			Depth:      item.Meta.Depth,
			Status:     resp.Status,
			FetchedAt:  resp.FetchedAt,
		})
	case router.KindJS:
		return o.jsProc.Process(jsproc.Input{
			OutputRoot: o.outputRoot,
			Canonical:  canonical,
			Body:       resp.Body,
			Depth:      item.Meta.Depth,
			Status:     resp.Status,
			FetchedAt:  resp.FetchedAt,
		})
	case router.KindAPI:
		return o.apiProc.Process(apiproc.Input{
			OutputRoot:   o.outputRoot,
			Canonical:    canonical,
			URLKey:       item.URLKey,
			Body:         resp.Body,
			ETag:         resp.HeaderValue("ETag"),
			LastModified: resp.HeaderValue("Last-Modified"),
			Depth:        item.Meta.Depth,
			Status:       resp.Status,
			FetchedAt:    resp.FetchedAt,
		})
	default:
		return processor.Result{}, nil
	}
}

// applyResult is the only place Scheduler, Manifest, and the Dedup
// Index's URL-seen set are mutated on the strength of a processor's
// Result (spec §9's design note eliminating the processor<->scheduler
// cycle).
func (o *Orchestrator) applyResult(kind router.Kind, item scheduler.WorkItem, result processor.Result) {
	if result.Outcome != processor.OutcomeSaved {
		o.sched.MarkSkipped(item, string(result.Outcome))
		o.counts.Skipped++
		return
	}

	o.sched.MarkProcessed(item)
	switch kind {
	case router.KindHTML:
		o.counts.Pages++
	case router.KindJS:
		o.counts.JS++
	case router.KindAPI:
		o.counts.API++
	}

	if result.Artifact != nil {
		o.manifestBook.AppendArtifact(*result.Artifact)
	}
	if result.CodexEntry != nil {
		result.CodexEntry.Priority = item.Score
		if err := o.manifestBook.AppendCodexEntry(*result.CodexEntry); err != nil {
			o.recordErrorTally("manifest")
		}
	}
	for _, ep := range result.Endpoints {
		o.manifestBook.AppendEndpoint(ep)
	}
	for _, d := range result.DiscoveredURLs {
		base := item.Canonical
		o.sched.Enqueue(d.Raw, &base, scheduler.Meta{
			Depth:  item.Meta.Depth + 1,
			Reason: d.Reason,
			Parent: item.Canonical.String(),
		}, scheduler.EnqueueOptions{})
	}
}

func (o *Orchestrator) metrics() scheduler.Metrics {
	return scheduler.Metrics{
		Pages:        o.counts.Pages,
		JS:           o.counts.JS,
		API:          o.counts.API,
		PagesMax:     o.cfg.PagesMax(),
		JSMax:        o.cfg.JSMax(),
		APIMax:       o.cfg.APIMax(),
		Elapsed:      time.Since(o.startedAt),
		TimeMax:      o.cfg.TimeMax(),
		ErrorRate:    o.errorRate(),
		ErrorRateMax: o.cfg.ErrorRateMax(),
	}
}

func (o *Orchestrator) errorRate() float64 {
	if o.counts.Fetches == 0 {
		return 0
	}
	return float64(o.counts.Errors) / float64(o.counts.Fetches)
}

func (o *Orchestrator) maybeCheckpoint(lastURL string, sinceLast int) int {
	sinceLast++
	if sinceLast < checkpointEveryN {
		return sinceLast
	}
	o.saveCheckpoint(lastURL)
	return 0
}

func (o *Orchestrator) saveCheckpoint(lastURL string) {
	if o.dryRun {
		return
	}
	data := checkpoint.Data{
		LastURL:   lastURL,
		Pending:   checkpoint.BuildPending(o.sched.Snapshot()),
		Budget:    checkpoint.Budget{Pages: o.counts.Pages, JS: o.counts.JS, API: o.counts.API},
		StartedAt: o.startedAt,
	}
	o.cp.Save(data)
}

func (o *Orchestrator) flush(reason string) {
	o.manifestBook.Flush(reason, manifest.FlushInput{
		Patterns:    patternSummaries(o.families.Snapshot()),
		Errors:      o.errorTallies(),
		BudgetsUsed: manifest.BudgetSet{Pages: o.counts.Pages, JS: o.counts.JS, API: o.counts.API},
		FinishedAt:  time.Now(),
	})
}

func (o *Orchestrator) recordErrorTally(kind string) {
	if o.errorTally == nil {
		o.errorTally = make(map[string]int)
	}
	o.errorTally[kind]++
}

func (o *Orchestrator) errorTallies() []manifest.ErrorTally {
	out := make([]manifest.ErrorTally, 0, len(o.errorTally))
	for kind, count := range o.errorTally {
		out = append(out, manifest.ErrorTally{Kind: kind, Count: count})
	}
	return out
}

func patternSummaries(counters map[string]family.Counters) map[string]manifest.PatternSummary {
	out := make(map[string]manifest.PatternSummary, len(counters))
	for key, c := range counters {
		out[key] = manifest.PatternSummary{Count: c.Count, SamplesSaved: c.SamplesSaved, Skipped: c.Skipped}
	}
	return out
}
