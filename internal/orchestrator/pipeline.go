package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/reconcrawl/internal/fetcher"
	"github.com/kraklabs/reconcrawl/internal/scheduler"
	"github.com/kraklabs/reconcrawl/pkg/failure"
)

/*
Fetch pipeline (spec §4.6)

The Fetcher is allowed to run up to concurrency parallel fetches, but
the orchestrator's SELECT->FETCH->ROUTE->PROCESS loop must still
consume exactly one completed response at a time — ROUTE/PROCESS and
every mutation of the Scheduler, Dedup Index, and family counters stay
on Run's single goroutine (spec §5). fetchPipeline is the boundary: it
fans dequeued work out across an errgroup of in-flight HTTPFetcher.Fetch
calls and funnels their results back through a single channel that
Run's loop drains one at a time.
*/
type fetchOutcome struct {
	item scheduler.WorkItem
	resp fetcher.Response
	err  failure.ClassifiedError
}

type fetchPipeline struct {
	o *Orchestrator

	group       *errgroup.Group
	outcomes    chan fetchOutcome
	inFlight    int
	concurrency int
}

func newFetchPipeline(o *Orchestrator) *fetchPipeline {
	concurrency := o.cfg.Concurrency()
	if concurrency < 1 {
		concurrency = 1
	}
	return &fetchPipeline{
		o:           o,
		group:       &errgroup.Group{},
		outcomes:    make(chan fetchOutcome, concurrency),
		concurrency: concurrency,
	}
}

// fill tops up the number of in-flight fetches to concurrency, launching
// one goroutine per dequeued item. It stops as soon as the frontier has
// nothing left to offer right now; the caller re-invokes fill on every
// loop iteration to keep the pipeline full as outcomes drain.
func (p *fetchPipeline) fill(ctx context.Context) {
	for p.inFlight < p.concurrency {
		item, ok := p.o.sched.Dequeue()
		if !ok {
			return
		}
		p.inFlight++
		p.group.Go(func() error {
			resp, err := p.o.fetch.Fetch(ctx, item.Canonical, item.Meta.Depth, p.o.strategy, p.o.retryParam)
			select {
			case p.outcomes <- fetchOutcome{item: item, resp: resp, err: err}:
			case <-ctx.Done():
			}
			return nil
		})
	}
}

// next blocks for the next completed fetch. It returns false once no
// fetch is in flight, meaning fill found nothing to launch either.
func (p *fetchPipeline) next(ctx context.Context) (fetchOutcome, bool) {
	if p.inFlight == 0 {
		return fetchOutcome{}, false
	}
	select {
	case out := <-p.outcomes:
		p.inFlight--
		return out, true
	case <-ctx.Done():
		return fetchOutcome{}, false
	}
}

// drain waits for every launched fetch to return. The outcomes channel
// is sized to concurrency, so every in-flight goroutine can always
// deliver its result (or give up on ctx.Done) without this having to
// read from the channel first.
func (p *fetchPipeline) drain() {
	p.group.Wait()
}
