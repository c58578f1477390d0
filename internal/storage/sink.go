package storage

import (
	"net/url"
	"path/filepath"
	"sync"

	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/fileutil"
	"github.com/kraklabs/reconcrawl/pkg/hashutil"
)

/*
Responsibilities
- Derive deterministic, collision-resistant output paths (spec §4.11)
- Persist artifact bytes atomically under the output root
- Track written js/ basenames so repeat basenames get a hash suffix

Output Characteristics
- Stable directory layout: pages/, js/, api/
- Idempotent writes: the same canonical URL always derives the same path
- Overwrite-safe reruns: atomic write-temp-then-rename
*/

type Sink interface {
	// Write persists content under outputRoot at the path derived for
	// (kind, canonical), and returns the relative/absolute paths plus the
	// sha256 of the bytes actually written.
	Write(outputRoot string, kind Kind, canonical url.URL, content []byte) (WriteResult, failure.ClassifiedError)
}

type LocalSink struct {
	metadataSink metadata.MetadataSink

	mu          sync.Mutex
	jsBasenames map[string]bool
}

func NewLocalSink(metadataSink metadata.MetadataSink) *LocalSink {
	return &LocalSink{
		metadataSink: metadataSink,
		jsBasenames:  make(map[string]bool),
	}
}

func (s *LocalSink) Write(
	outputRoot string,
	kind Kind,
	canonical url.URL,
	content []byte,
) (WriteResult, failure.ClassifiedError) {
	relPath := s.derivePath(kind, canonical)
	absPath := filepath.Join(outputRoot, relPath)

	if err := fileutil.WriteFileAtomic(absPath, content, 0644); err != nil {
		storageErr := &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
			Path:      absPath,
		}
		s.metadataSink.RecordError(
			"storage",
			"LocalSink.Write",
			mapStorageErrorToMetadataCause(storageErr),
			storageErr,
			metadata.NewAttr(metadata.AttrURL, canonical.String()),
			metadata.NewAttr(metadata.AttrWritePath, absPath),
		)
		return WriteResult{}, storageErr
	}

	sha := hashutil.SHA256Hex(content)
	return NewWriteResult(relPath, absPath, sha), nil
}

// derivePath wraps PathFor, threading through the js-basename collision
// registry for js artifacts (spec §4.11's "appending a short hash suffix
// on collision").
func (s *LocalSink) derivePath(kind Kind, canonical url.URL) string {
	if kind != KindJS {
		return PathFor(kind, canonical, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	relPath := PathFor(kind, canonical, s.jsBasenames)
	s.jsBasenames[filepath.Base(relPath)] = true
	return relPath
}

var _ Sink = (*LocalSink)(nil)

// NoopSink discards writes; used for --dry-run crawls (spec §4.14) so the
// rest of the pipeline runs unchanged but nothing lands on disk.
type NoopSink struct{}

func (NoopSink) Write(outputRoot string, kind Kind, canonical url.URL, content []byte) (WriteResult, failure.ClassifiedError) {
	relPath := PathFor(kind, canonical, nil)
	return NewWriteResult(relPath, filepath.Join(outputRoot, relPath), hashutil.SHA256Hex(content)), nil
}

var _ Sink = NoopSink{}
