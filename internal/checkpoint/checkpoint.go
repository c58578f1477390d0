/*
Package checkpoint implements spec §4.13: captures last_url, pending
queue items, budget, and timestamps after every successful fetch+process
or non-fatal failure, persisted atomically; restore re-enqueues pending
work with scope/dedup checks bypassed, then rebuilds the seen-set from a
prior manifest.
*/
package checkpoint

import (
	"encoding/json"
	"os"
	"time"

	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/manifest"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/scheduler"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/fileutil"
	"github.com/kraklabs/reconcrawl/pkg/urlutil"
)

// Checkpoint persists and restores crawl progress at a fixed path.
type Checkpoint struct {
	path         string
	metadataSink metadata.MetadataSink
}

func New(path string, metadataSink metadata.MetadataSink) *Checkpoint {
	return &Checkpoint{path: path, metadataSink: metadataSink}
}

// Save writes data atomically, overwriting any prior checkpoint.
func (c *Checkpoint) Save(data Data) failure.ClassifiedError {
	data.UpdatedAt = time.Now()
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		ckErr := &CheckpointError{Message: err.Error(), Retryable: false, Cause: ErrCauseMalformed}
		c.metadataSink.RecordError("checkpoint", "Checkpoint.Save", mapCheckpointErrorToMetadataCause(ckErr), ckErr)
		return ckErr
	}
	if writeErr := fileutil.WriteFileAtomic(c.path, encoded, 0644); writeErr != nil {
		ckErr := &CheckpointError{Message: writeErr.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		c.metadataSink.RecordError("checkpoint", "Checkpoint.Save", mapCheckpointErrorToMetadataCause(ckErr), ckErr)
		return ckErr
	}
	c.metadataSink.RecordCheckpoint(len(data.Pending))
	return nil
}

// Load reads a prior checkpoint. ok is false (with a nil error) when no
// checkpoint file exists yet — the normal first-run case.
func (c *Checkpoint) Load() (data Data, ok bool, classified failure.ClassifiedError) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Data{}, false, nil
		}
		ckErr := &CheckpointError{Message: err.Error(), Retryable: false, Cause: ErrCauseReadFailure}
		c.metadataSink.RecordError("checkpoint", "Checkpoint.Load", mapCheckpointErrorToMetadataCause(ckErr), ckErr)
		return Data{}, false, ckErr
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		ckErr := &CheckpointError{Message: err.Error(), Retryable: false, Cause: ErrCauseMalformed}
		c.metadataSink.RecordError("checkpoint", "Checkpoint.Load", mapCheckpointErrorToMetadataCause(ckErr), ckErr)
		return Data{}, false, ckErr
	}
	return data, true, nil
}

// BuildPending projects a Scheduler snapshot into the checkpoint's
// trimmed PendingItem shape.
func BuildPending(snap scheduler.Snapshot) []PendingItem {
	items := make([]PendingItem, 0, len(snap.Pending))
	for _, item := range snap.Pending {
		items = append(items, PendingItem{
			URL:    item.Canonical.String(),
			Depth:  item.Meta.Depth,
			Reason: item.Meta.Reason,
			Parent: item.Meta.Parent,
			Score:  item.Score,
		})
	}
	return items
}

// Restore re-enqueues every pending item with Force=true, bypassing
// scope and dedup re-checks because they were already validated before
// the checkpoint was written (spec §4.13).
func Restore(sched *scheduler.Scheduler, data Data) {
	for _, item := range data.Pending {
		sched.Enqueue(item.URL, nil, scheduler.Meta{
			Depth:  item.Depth,
			Reason: item.Reason,
			Parent: item.Parent,
		}, scheduler.EnqueueOptions{Force: true})
	}
}

// RebuildSeenSet replays a prior manifest's files[] into the Dedup
// Index's content and URL seen-sets, so a restored crawl never re-saves
// or re-enqueues work a previous run already completed (spec §4.13:
// "honor the seen-set, which is rebuilt from manifest sha256s and
// url_keys at startup").
func RebuildSeenSet(dedupIndex *dedup.Index, doc manifest.Document) {
	for _, file := range doc.Files {
		dedupIndex.MarkContentSeen(file.SHA256)
		result, err := urlutil.Canonicalize(file.SourceURL, nil)
		if err != nil {
			continue
		}
		dedupIndex.MarkURLSeen(result.URLKey)
	}
}
