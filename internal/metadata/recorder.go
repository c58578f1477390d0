package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// MetadataSink is the structured-event recording contract consumed by
// every other component (spec §6's thirteen logging events). Implementing
// this as an interface, rather than a concrete logger, lets tests swap in
// an in-memory sink that asserts on recorded events without touching disk.
type MetadataSink interface {
	RecordEnqueue(url string, depth int, score float64)
	RecordDequeue(url string, score float64)
	RecordFetch(event FetchEvent)
	RecordSkip(url string, reason string)
	RecordArtifact(record ArtifactRecord)
	RecordDuplicate(url string, reason string)
	RecordFamilySkipped(url string, familyKey string)
	RecordRedacted(url string)
	RecordError(pkgName, action string, cause ErrorCause, err error, attrs ...Attribute)
	RecordFlush(reason string, count int)
	RecordCheckpoint(pendingCount int)
	RecordStop(reason string)
	RecordFinalCrawlStats(stats CrawlStats)
}

// CrawlFinalizer is implemented by sinks that need to flush buffered state
// (e.g. a file-backed Recorder) once the orchestrator reaches DONE.
type CrawlFinalizer interface {
	Close() error
}

// Recorder is a line-oriented structured-event sink: one line per event,
// fields in `key=value` shape. No third-party logging library appears
// anywhere in the retrieved pack's crawler-shaped repos, so this keeps the
// teacher's own hand-rolled idiom rather than reaching for one.
type Recorder struct {
	mu  sync.Mutex
	out io.Writer
}

func NewRecorder(out io.Writer) *Recorder {
	return &Recorder{out: out}
}

func (r *Recorder) writeLine(event string, fields ...Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "time=%s event=%s", time.Now().UTC().Format(time.RFC3339Nano), event)
	for _, f := range fields {
		fmt.Fprintf(r.out, " %s=%q", f.Key, f.Value)
	}
	fmt.Fprintln(r.out)
}

func (r *Recorder) RecordEnqueue(url string, depth int, score float64) {
	r.writeLine("enqueue",
		NewAttr(AttrURL, url),
		NewAttr(AttrDepth, fmt.Sprintf("%d", depth)),
		NewAttr(AttrScore, fmt.Sprintf("%.4f", score)),
	)
}

func (r *Recorder) RecordDequeue(url string, score float64) {
	r.writeLine("dequeue",
		NewAttr(AttrURL, url),
		NewAttr(AttrScore, fmt.Sprintf("%.4f", score)),
	)
}

func (r *Recorder) RecordFetch(event FetchEvent) {
	r.writeLine("fetch",
		NewAttr(AttrURL, event.URL),
		NewAttr(AttrHTTPStatus, fmt.Sprintf("%d", event.HTTPStatus)),
		NewAttr(AttrDepth, fmt.Sprintf("%d", event.CrawlDepth)),
		NewAttr("duration_ms", fmt.Sprintf("%d", event.Duration.Milliseconds())),
		NewAttr("content_type", event.ContentType),
		NewAttr("retry_count", fmt.Sprintf("%d", event.RetryCount)),
	)
}

func (r *Recorder) RecordSkip(url string, reason string) {
	r.writeLine("skip", NewAttr(AttrURL, url), NewAttr(AttrReason, reason))
}

func (r *Recorder) RecordArtifact(record ArtifactRecord) {
	r.writeLine("artifact",
		NewAttr("kind", record.Kind),
		NewAttr(AttrURL, record.SourceURL),
		NewAttr(AttrWritePath, record.Path),
		NewAttr(AttrSHA256, record.SHA256),
		NewAttr(AttrDepth, fmt.Sprintf("%d", record.Depth)),
	)
}

func (r *Recorder) RecordDuplicate(url string, reason string) {
	r.writeLine("duplicate", NewAttr(AttrURL, url), NewAttr(AttrReason, reason))
}

func (r *Recorder) RecordFamilySkipped(url string, familyKey string) {
	r.writeLine("family-skipped", NewAttr(AttrURL, url), NewAttr(AttrFamilyKey, familyKey))
}

func (r *Recorder) RecordRedacted(url string) {
	r.writeLine("redacted", NewAttr(AttrURL, url))
}

func (r *Recorder) RecordError(pkgName, action string, cause ErrorCause, err error, attrs ...Attribute) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	fields := append([]Attribute{
		NewAttr(AttrField, pkgName+"."+action),
		NewAttr("cause", cause.String()),
		NewAttr("message", msg),
	}, attrs...)
	r.writeLine("error", fields...)
}

func (r *Recorder) RecordFlush(reason string, count int) {
	r.writeLine("flush", NewAttr(AttrReason, reason), NewAttr(AttrCount, fmt.Sprintf("%d", count)))
}

func (r *Recorder) RecordCheckpoint(pendingCount int) {
	r.writeLine("checkpoint", NewAttr(AttrCount, fmt.Sprintf("%d", pendingCount)))
}

func (r *Recorder) RecordStop(reason string) {
	r.writeLine("stop", NewAttr(AttrReason, reason))
}

func (r *Recorder) RecordFinalCrawlStats(stats CrawlStats) {
	r.writeLine("summary",
		NewAttr("pages", fmt.Sprintf("%d", stats.TotalPages)),
		NewAttr("js", fmt.Sprintf("%d", stats.TotalJS)),
		NewAttr("api", fmt.Sprintf("%d", stats.TotalAPI)),
		NewAttr("errors", fmt.Sprintf("%d", stats.TotalErrors)),
		NewAttr("skipped", fmt.Sprintf("%d", stats.TotalSkipped)),
		NewAttr("duration_ms", fmt.Sprintf("%d", stats.TotalDuration.Milliseconds())),
		NewAttr(AttrReason, stats.StopReason),
	)
}
