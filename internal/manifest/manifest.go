package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/fileutil"
)

// FlushThresholdArtifacts and FlushThresholdAge implement spec §4.12's
// "50 artifacts since last flush or 60 seconds elapsed, whichever
// first" policy.
const (
	FlushThresholdArtifacts = 50
	FlushThresholdAge       = 60 * time.Second
)

// Manifest owns the in-memory manifest document and the append-only
// codex stream (spec §4.12). It is exclusively owned by the
// orchestrator's flush path (spec §3's Codex Entry ownership note); no
// other component writes through it directly.
type Manifest struct {
	mu sync.Mutex

	outputRoot   string
	metadataSink metadata.MetadataSink
	dryRun       bool

	target     string
	configHash string
	depthMax   int
	budgetsMax BudgetSet
	startedAt  time.Time

	files     []FileRecord
	endpoints []EndpointRecord

	sinceFlush int
	lastFlush  time.Time

	codexFile *os.File
}

// New opens (or, under dryRun, simulates) the codex index stream and
// returns a Manifest ready to accumulate artifacts for one run.
func New(outputRoot, target, configHash string, depthMax int, budgetsMax BudgetSet, sink metadata.MetadataSink, dryRun bool) (*Manifest, failure.ClassifiedError) {
	m := &Manifest{
		outputRoot:   outputRoot,
		metadataSink: sink,
		dryRun:       dryRun,
		target:       target,
		configHash:   configHash,
		depthMax:     depthMax,
		budgetsMax:   budgetsMax,
		startedAt:    time.Now(),
		lastFlush:    time.Now(),
	}

	if dryRun {
		return m, nil
	}

	if err := fileutil.EnsureDir(outputRoot); err != nil {
		return nil, &ManifestError{Message: err.Error(), Retryable: false, Cause: ErrCauseCodexWriteFailure}
	}

	f, err := os.OpenFile(filepath.Join(outputRoot, "codex_index.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &ManifestError{Message: err.Error(), Retryable: false, Cause: ErrCauseCodexWriteFailure}
	}
	m.codexFile = f
	return m, nil
}

// AppendArtifact records a saved Artifact into the in-memory manifest
// and notifies the metadata sink. Does not touch disk; that happens at
// Flush.
func (m *Manifest) AppendArtifact(record FileRecord) {
	m.mu.Lock()
	m.files = append(m.files, record)
	m.sinceFlush++
	m.mu.Unlock()

	m.metadataSink.RecordArtifact(metadata.ArtifactRecord{
		Kind:       record.Kind,
		SourceURL:  record.SourceURL,
		Path:       record.Path,
		SHA256:     record.SHA256,
		Size:       record.Size,
		Status:     record.Status,
		Depth:      record.Depth,
		CapturedAt: record.CapturedAt,
		Redacted:   record.Redacted,
	})
}

// AppendEndpoint records a discovered API-shaped endpoint for the final
// manifest's `endpoints` list.
func (m *Manifest) AppendEndpoint(rec EndpointRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints = append(m.endpoints, rec)
}

// AppendCodexEntry streams entry as one JSON line to codex_index.jsonl,
// syncing immediately: a crash must never lose an already-emitted line
// (spec §5's append-only codex index).
func (m *Manifest) AppendCodexEntry(entry CodexEntry) failure.ClassifiedError {
	if m.dryRun {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		manifestErr := &ManifestError{Message: err.Error(), Retryable: false, Cause: ErrCauseCodexWriteFailure}
		m.metadataSink.RecordError("manifest", "Manifest.AppendCodexEntry", mapManifestErrorToMetadataCause(manifestErr), manifestErr)
		return manifestErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	line = append(line, '\n')
	if _, err := m.codexFile.Write(line); err != nil {
		manifestErr := &ManifestError{Message: err.Error(), Retryable: true, Cause: ErrCauseCodexWriteFailure}
		m.metadataSink.RecordError("manifest", "Manifest.AppendCodexEntry", mapManifestErrorToMetadataCause(manifestErr), manifestErr)
		return manifestErr
	}
	if err := m.codexFile.Sync(); err != nil {
		manifestErr := &ManifestError{Message: err.Error(), Retryable: true, Cause: ErrCauseCodexWriteFailure}
		m.metadataSink.RecordError("manifest", "Manifest.AppendCodexEntry", mapManifestErrorToMetadataCause(manifestErr), manifestErr)
		return manifestErr
	}
	return nil
}

// ShouldFlush reports whether the artifact-count or elapsed-time
// threshold has been crossed since the last flush.
func (m *Manifest) ShouldFlush(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinceFlush >= FlushThresholdArtifacts || now.Sub(m.lastFlush) >= FlushThresholdAge
}

// FlushInput carries the state Manifest does not itself own (family
// patterns, error tallies, budget consumption) needed to assemble a
// complete manifest.json.
type FlushInput struct {
	Patterns    map[string]PatternSummary
	Errors      []ErrorTally
	BudgetsUsed BudgetSet
	FinishedAt  time.Time
}

// Flush rewrites manifest.json wholesale (spec §4.12: "Flush manifest
// to disk ... always flush on terminal events"). A no-op under dryRun
// beyond resetting the flush counters and notifying the sink.
func (m *Manifest) Flush(reason string, input FlushInput) failure.ClassifiedError {
	m.mu.Lock()
	doc := Document{
		Metadata: Metadata{
			Target:      m.target,
			StartedAt:   m.startedAt,
			FinishedAt:  input.FinishedAt,
			ConfigHash:  m.configHash,
			DepthMax:    m.depthMax,
			BudgetsUsed: input.BudgetsUsed,
			BudgetsMax:  m.budgetsMax,
		},
		Files:     append([]FileRecord(nil), m.files...),
		Patterns:  input.Patterns,
		Endpoints: append([]EndpointRecord(nil), m.endpoints...),
		Errors:    input.Errors,
	}
	flushedCount := len(m.files)
	m.sinceFlush = 0
	m.lastFlush = time.Now()
	m.mu.Unlock()

	if !m.dryRun {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			manifestErr := &ManifestError{Message: err.Error(), Retryable: false, Cause: ErrCauseFlushFailure}
			m.metadataSink.RecordError("manifest", "Manifest.Flush", mapManifestErrorToMetadataCause(manifestErr), manifestErr)
			return manifestErr
		}
		if writeErr := fileutil.WriteFileAtomic(filepath.Join(m.outputRoot, "manifest.json"), data, 0644); writeErr != nil {
			manifestErr := &ManifestError{Message: writeErr.Error(), Retryable: true, Cause: ErrCauseFlushFailure}
			m.metadataSink.RecordError("manifest", "Manifest.Flush", mapManifestErrorToMetadataCause(manifestErr), manifestErr)
			return manifestErr
		}
	}

	m.metadataSink.RecordFlush(reason, flushedCount)
	return nil
}

// Close releases the codex stream's file handle.
func (m *Manifest) Close() error {
	if m.codexFile == nil {
		return nil
	}
	return m.codexFile.Close()
}

var _ metadata.CrawlFinalizer = (*Manifest)(nil)
