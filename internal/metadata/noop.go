package metadata

// NoopSink implements MetadataSink by discarding every event. Embed it in a
// test spy to satisfy the interface while overriding only the methods under
// test.
type NoopSink struct{}

func (NoopSink) RecordEnqueue(url string, depth int, score float64)      {}
func (NoopSink) RecordDequeue(url string, score float64)                {}
func (NoopSink) RecordFetch(event FetchEvent)                           {}
func (NoopSink) RecordSkip(url string, reason string)                   {}
func (NoopSink) RecordArtifact(record ArtifactRecord)                   {}
func (NoopSink) RecordDuplicate(url string, reason string)              {}
func (NoopSink) RecordFamilySkipped(url string, familyKey string)       {}
func (NoopSink) RecordRedacted(url string)                              {}
func (NoopSink) RecordError(pkgName, action string, cause ErrorCause, err error, attrs ...Attribute) {
}
func (NoopSink) RecordFlush(reason string, count int)       {}
func (NoopSink) RecordCheckpoint(pendingCount int)          {}
func (NoopSink) RecordStop(reason string)                   {}
func (NoopSink) RecordFinalCrawlStats(stats CrawlStats)     {}
