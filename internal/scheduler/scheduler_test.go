package scheduler_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/family"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/scheduler"
	"github.com/kraklabs/reconcrawl/internal/scope"
)

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	guard, err := scope.NewRuleGuard(scope.Param{AllowedDomains: []string{"example.com"}})
	require.NoError(t, err)

	return scheduler.New(
		guard,
		dedup.NewIndex(dedup.Param{}),
		family.NewRegistry(3.5),
		metadata.NoopSink{},
		scheduler.DefaultWeights(),
		nil,
	)
}

func TestEnqueueDequeue_DescendingScoreOrder(t *testing.T) {
	s := newTestScheduler(t)

	shallow, ok := s.Enqueue("https://example.com/docs/page", nil, scheduler.Meta{Depth: 0}, scheduler.EnqueueOptions{})
	require.True(t, ok)

	deep, ok := s.Enqueue("https://example.com/a/b/c/d/e/page", nil, scheduler.Meta{Depth: 5}, scheduler.EnqueueOptions{})
	require.True(t, ok)

	assert.GreaterOrEqual(t, shallow.Score, deep.Score)

	first, ok := s.Dequeue()
	require.True(t, ok)
	assert.Equal(t, shallow.URLKey, first.URLKey)

	second, ok := s.Dequeue()
	require.True(t, ok)
	assert.Equal(t, deep.URLKey, second.URLKey)
}

func TestEnqueue_FIFOTiebreakOnEqualScore(t *testing.T) {
	s := newTestScheduler(t)

	first, ok := s.Enqueue("https://example.com/alpha", nil, scheduler.Meta{Depth: 1}, scheduler.EnqueueOptions{})
	require.True(t, ok)
	second, ok := s.Enqueue("https://example.com/beta", nil, scheduler.Meta{Depth: 1}, scheduler.EnqueueOptions{})
	require.True(t, ok)

	if first.Score == second.Score {
		out1, _ := s.Dequeue()
		out2, _ := s.Dequeue()
		assert.Equal(t, first.URLKey, out1.URLKey)
		assert.Equal(t, second.URLKey, out2.URLKey)
	}
}

func TestEnqueue_RejectsOutOfScope(t *testing.T) {
	s := newTestScheduler(t)
	_, ok := s.Enqueue("https://evil.test/x", nil, scheduler.Meta{}, scheduler.EnqueueOptions{})
	assert.False(t, ok)
}

func TestEnqueue_RejectsDuplicatePending(t *testing.T) {
	s := newTestScheduler(t)
	_, ok := s.Enqueue("https://example.com/dup", nil, scheduler.Meta{}, scheduler.EnqueueOptions{})
	require.True(t, ok)
	_, ok = s.Enqueue("https://example.com/dup", nil, scheduler.Meta{}, scheduler.EnqueueOptions{})
	assert.False(t, ok)
}

func TestEnqueue_RejectsAlreadyVisited(t *testing.T) {
	s := newTestScheduler(t)
	item, ok := s.Enqueue("https://example.com/seen", nil, scheduler.Meta{}, scheduler.EnqueueOptions{})
	require.True(t, ok)

	_, _ = s.Dequeue()
	s.MarkProcessed(item)

	_, ok = s.Enqueue("https://example.com/seen", nil, scheduler.Meta{}, scheduler.EnqueueOptions{})
	assert.False(t, ok)
}

func TestEnqueue_ForceBypassesVisitedCheck(t *testing.T) {
	s := newTestScheduler(t)
	item, ok := s.Enqueue("https://example.com/restored", nil, scheduler.Meta{}, scheduler.EnqueueOptions{})
	require.True(t, ok)
	_, _ = s.Dequeue()
	s.MarkProcessed(item)

	_, ok = s.Enqueue("https://example.com/restored", nil, scheduler.Meta{}, scheduler.EnqueueOptions{Force: true})
	assert.True(t, ok)
}

func TestDequeue_EmptyQueueReturnsFalse(t *testing.T) {
	s := newTestScheduler(t)
	_, ok := s.Dequeue()
	assert.False(t, ok)
}

func TestShouldStop_PagesMax(t *testing.T) {
	s := newTestScheduler(t)
	stop, reason := s.ShouldStop(scheduler.Metrics{Pages: 10, PagesMax: 10})
	assert.True(t, stop)
	assert.Equal(t, "pages_max", reason)
}

func TestShouldStop_TimeMax(t *testing.T) {
	s := newTestScheduler(t)
	stop, reason := s.ShouldStop(scheduler.Metrics{Elapsed: time.Hour, TimeMax: time.Minute})
	assert.True(t, stop)
	assert.Equal(t, "time_max", reason)
}

func TestShouldStop_ErrorRateMax(t *testing.T) {
	s := newTestScheduler(t)
	stop, reason := s.ShouldStop(scheduler.Metrics{ErrorRate: 0.5, ErrorRateMax: 0.3})
	assert.True(t, stop)
	assert.Equal(t, "error_rate_max", reason)
}

func TestShouldStop_NoLimitsConfiguredNeverStops(t *testing.T) {
	s := newTestScheduler(t)
	stop, _ := s.ShouldStop(scheduler.Metrics{Pages: 1000000})
	assert.False(t, stop)
}

func TestSnapshotRestore_RoundTrips(t *testing.T) {
	s := newTestScheduler(t)
	_, ok := s.Enqueue("https://example.com/one", nil, scheduler.Meta{Depth: 1}, scheduler.EnqueueOptions{})
	require.True(t, ok)
	_, ok = s.Enqueue("https://example.com/two", nil, scheduler.Meta{Depth: 2}, scheduler.EnqueueOptions{})
	require.True(t, ok)

	snap := s.Snapshot()
	require.Len(t, snap.Pending, 2)

	restored := newTestScheduler(t)
	restored.Restore(snap)
	assert.Equal(t, 2, restored.Len())
}

func TestEnqueue_RelativeURLResolvesAgainstBase(t *testing.T) {
	s := newTestScheduler(t)
	base, err := url.Parse("https://example.com/docs/")
	require.NoError(t, err)

	item, ok := s.Enqueue("child", base, scheduler.Meta{Depth: 1}, scheduler.EnqueueOptions{})
	require.True(t, ok)
	assert.Equal(t, "example.com", item.Canonical.Hostname())
	assert.Equal(t, "/docs/child", item.Canonical.Path)
}

func TestEnqueue_InvalidURLRejected(t *testing.T) {
	s := newTestScheduler(t)
	_, ok := s.Enqueue("://not a url", nil, scheduler.Meta{}, scheduler.EnqueueOptions{})
	assert.False(t, ok)
}
