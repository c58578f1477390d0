package scheduler

import (
	"container/heap"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/family"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/scope"
	"github.com/kraklabs/reconcrawl/pkg/urlutil"
)

/*
Scheduler (spec §4.5)

Owns the priority queue, exclusively. It is the only component that
decides whether a discovered URL is admitted to the frontier, and the
only component that knows dequeue order.

A discovered URL cannot be dequeued before the artifact that discovered
it has been registered, because registration precedes the next
orchestrator SELECT step — the Scheduler itself has no notion of that
ordering; it only guarantees FIFO-within-equal-score dequeue order
(spec §5).
*/

var typeBoostSegments = []string{"/api", "/graphql", "/auth", "/admin", "/config", "/v1", "/v2"}

var noiseQueryKeys = []string{"utm_source", "utm_medium", "utm_campaign", "gclid", "fbclid", "page", "offset", "cursor"}

type EnqueueOptions struct {
	// Force bypasses the already-visited/already-pending admission
	// checks, used for checkpoint restore and seed submission (spec
	// §4.5).
	Force bool
}

// Scheduler is the sole owner of the pending-work priority queue (spec
// §3's ownership rule).
type Scheduler struct {
	mu sync.Mutex

	queue   itemHeap
	pending map[string]struct{}
	nextSeq int

	scopeGuard scope.Guard
	dedupIndex *dedup.Index
	families   *family.Registry
	metadata   metadata.MetadataSink
	weights    Weights
	noiseDrop  []string

	seenHosts    map[string]struct{}
	seenSegments map[string]struct{}

	startedAt time.Time
}

func New(
	scopeGuard scope.Guard,
	dedupIndex *dedup.Index,
	families *family.Registry,
	sink metadata.MetadataSink,
	weights Weights,
	noiseDropParams []string,
) *Scheduler {
	return &Scheduler{
		pending:      make(map[string]struct{}),
		scopeGuard:   scopeGuard,
		dedupIndex:   dedupIndex,
		families:     families,
		metadata:     sink,
		weights:      weights,
		noiseDrop:    noiseDropParams,
		seenHosts:    make(map[string]struct{}),
		seenSegments: make(map[string]struct{}),
		startedAt:    time.Now(),
	}
}

// Enqueue canonicalizes raw, rejects it if out of scope, already
// visited, or already pending (unless opts.Force), computes its score,
// and inserts it. Returns the inserted WorkItem and true on success.
func (s *Scheduler) Enqueue(raw string, base *url.URL, meta Meta, opts EnqueueOptions) (WorkItem, bool) {
	result, err := urlutil.CanonicalizeWithNoise(raw, base, s.noiseDrop)
	if err != nil {
		s.metadata.RecordSkip(raw, "invalid-url")
		return WorkItem{}, false
	}
	canonical := result.Canonical

	if !opts.Force {
		if !s.scopeGuard.Allowed(canonical) {
			s.metadata.RecordSkip(result.String(), "out-of-scope")
			return WorkItem{}, false
		}
		if s.dedupIndex.SeenURL(result.URLKey) {
			s.metadata.RecordSkip(result.String(), "already-visited")
			return WorkItem{}, false
		}
	}

	s.mu.Lock()
	if !opts.Force {
		if _, already := s.pending[result.URLKey]; already {
			s.mu.Unlock()
			s.metadata.RecordSkip(result.String(), "already-pending")
			return WorkItem{}, false
		}
	}

	score := s.score(canonical, meta.Depth)

	item := &WorkItem{
		URLKey:    result.URLKey,
		Canonical: canonical,
		Meta:      meta,
		Score:     score,
		seq:       s.nextSeq,
	}
	s.nextSeq++
	s.pending[item.URLKey] = struct{}{}
	heap.Push(&s.queue, item)
	s.recordNovelty(canonical)
	s.mu.Unlock()

	s.metadata.RecordEnqueue(result.String(), meta.Depth, score)
	return *item, true
}

// Dequeue returns the highest-score pending item, or false if the queue
// is empty.
func (s *Scheduler) Dequeue() (WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() == 0 {
		return WorkItem{}, false
	}
	item := heap.Pop(&s.queue).(*WorkItem)
	delete(s.pending, item.URLKey)

	s.metadata.RecordDequeue(item.Canonical.String(), item.Score)
	return *item, true
}

// MarkProcessed records that item completed successfully. Bookkeeping
// only — the Dedup Index and Manifest are updated by the processor/
// orchestrator, not here.
func (s *Scheduler) MarkProcessed(item WorkItem) {
	s.dedupIndex.MarkURLSeen(item.URLKey)
}

// MarkSkipped records that item was dequeued but not fetched/processed
// (out-of-scope discovery, duplicate, family cap).
func (s *Scheduler) MarkSkipped(item WorkItem, reason string) {
	s.dedupIndex.MarkURLSeen(item.URLKey)
	s.metadata.RecordSkip(item.Canonical.String(), reason)
}

// MarkFailed records that item's fetch or processing failed terminally.
func (s *Scheduler) MarkFailed(item WorkItem, cause metadata.ErrorCause, err error) {
	s.dedupIndex.MarkURLSeen(item.URLKey)
	s.metadata.RecordError("scheduler", "MarkFailed", cause, err, metadata.NewAttr(metadata.AttrURL, item.Canonical.String()))
}

// ShouldStop implements the spec §4.5 stop-conditions.
func (s *Scheduler) ShouldStop(m Metrics) (bool, string) {
	switch {
	case m.PagesMax > 0 && m.Pages >= m.PagesMax:
		return true, "pages_max"
	case m.JSMax > 0 && m.JS >= m.JSMax:
		return true, "js_max"
	case m.APIMax > 0 && m.API >= m.APIMax:
		return true, "api_max"
	case m.TimeMax > 0 && m.Elapsed >= m.TimeMax:
		return true, "time_max"
	case m.ErrorRateMax > 0 && m.ErrorRate >= m.ErrorRateMax:
		return true, "error_rate_max"
	}
	return false, ""
}

// Len reports the number of pending items.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Snapshot returns a serializable view of pending items for Checkpoint.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]WorkItem, len(s.queue))
	for i, it := range s.queue {
		items[i] = *it
	}
	return Snapshot{Pending: items}
}

// Restore re-enqueues every item from a Snapshot with Force=true,
// bypassing scope and dedup re-checks because they were already
// validated before the checkpoint was written (spec §4.13).
func (s *Scheduler) Restore(snap Snapshot) {
	for _, item := range snap.Pending {
		s.mu.Lock()
		item := item
		item.seq = s.nextSeq
		s.nextSeq++
		s.pending[item.URLKey] = struct{}{}
		heap.Push(&s.queue, &item)
		s.mu.Unlock()
	}
}

// score implements spec §4.5.1's clipped weighted sum.
func (s *Scheduler) score(canonical url.URL, depth int) float64 {
	var total float64

	if hasTypeSignal(canonical.Path) {
		total += s.weights.Type
	}

	total += s.weights.Depth * (1.0 / float64(1+depth))

	if s.isNovel(canonical) {
		total += s.weights.Novelty
	}

	familyKey := s.families.Key(canonical)
	familyCount := s.families.Count(familyKey)
	total -= s.weights.Family * familyPenalty(familyCount, s.weights.FamilyMaxSamples)

	if hasNoiseSignal(canonical.RawQuery) {
		total -= s.weights.Noise
	}

	return clip01(total)
}

// familyPenalty implements spec §4.5.1's min(1, family_count /
// family_max_samples). A zero or negative familyMaxSamples disables the
// penalty rather than dividing by zero.
func familyPenalty(familyCount, familyMaxSamples int) float64 {
	if familyCount <= 0 || familyMaxSamples <= 0 {
		return 0
	}
	ratio := float64(familyCount) / float64(familyMaxSamples)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func hasTypeSignal(path string) bool {
	lower := strings.ToLower(path)
	for _, seg := range typeBoostSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

func hasNoiseSignal(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return false
	}
	for _, key := range noiseQueryKeys {
		if _, ok := values[key]; ok {
			return true
		}
	}
	return false
}

func (s *Scheduler) isNovel(canonical url.URL) bool {
	host := canonical.Hostname()
	segments := strings.SplitN(strings.Trim(canonical.Path, "/"), "/", 2)
	firstSegment := host
	if len(segments) > 0 && segments[0] != "" {
		firstSegment = host + "/" + segments[0]
	}

	_, hostSeen := s.seenHosts[host]
	_, segSeen := s.seenSegments[firstSegment]
	return !hostSeen || !segSeen
}

func (s *Scheduler) recordNovelty(canonical url.URL) {
	host := canonical.Hostname()
	segments := strings.SplitN(strings.Trim(canonical.Path, "/"), "/", 2)
	firstSegment := host
	if len(segments) > 0 && segments[0] != "" {
		firstSegment = host + "/" + segments[0]
	}
	s.seenHosts[host] = struct{}{}
	s.seenSegments[firstSegment] = struct{}{}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
