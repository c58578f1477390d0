/*
Package apiproc implements the API/JSON Processor (spec §4.10):
content-hash and conditional-request dedup, recursive key/value
redaction, family-cap admission, and atomic storage of the redacted
representation while the original bytes' sha256 is preserved for
traceability.
*/
package apiproc

import (
	"net/url"
	"time"

	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/family"
	"github.com/kraklabs/reconcrawl/internal/manifest"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/processor"
	"github.com/kraklabs/reconcrawl/internal/storage"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/hashutil"
)

// Processor implements spec §4.10's API/JSON Processor.
type Processor struct {
	param Param

	dedupIndex   *dedup.Index
	families     *family.Registry
	storageSink  storage.Sink
	metadataSink metadata.MetadataSink
}

func New(param Param, dedupIndex *dedup.Index, families *family.Registry, storageSink storage.Sink, metadataSink metadata.MetadataSink) *Processor {
	return &Processor{
		param:        param.withDefaults(),
		dedupIndex:   dedupIndex,
		families:     families,
		storageSink:  storageSink,
		metadataSink: metadataSink,
	}
}

// Input is everything the orchestrator has on hand after a successful
// fetch+route to KindAPI.
type Input struct {
	OutputRoot   string
	Canonical    url.URL
	URLKey       string
	Body         []byte
	ETag         string
	LastModified string
	Depth        int
	Status       int
	FetchedAt    time.Time
}

// Process implements the spec §4.10 step sequence.
func (p *Processor) Process(in Input) (processor.Result, failure.ClassifiedError) {
	sha := hashutil.SHA256Hex(in.Body)
	if p.dedupIndex.SeenContent(sha) {
		p.metadataSink.RecordDuplicate(in.Canonical.String(), "content-hash")
		return processor.Result{Outcome: processor.OutcomeDuplicate}, nil
	}

	condTag := in.ETag
	if condTag == "" {
		condTag = in.LastModified
	}
	if condTag != "" && p.dedupIndex.SeenETag(in.URLKey, condTag) {
		p.metadataSink.RecordDuplicate(in.Canonical.String(), "conditional-request")
		return processor.Result{Outcome: processor.OutcomeDuplicate}, nil
	}

	toWrite, redacted, err := redactJSON(in.Body)
	if err != nil {
		toWrite, redacted = redactOpaqueString(in.Body)
	}

	familyKey := p.families.Key(in.Canonical)
	candidate := family.Candidate{BodyLen: len(in.Body), Status: in.Status}
	if !p.families.Observe(familyKey, candidate, p.param.FamilyMaxSamples) {
		p.metadataSink.RecordFamilySkipped(in.Canonical.String(), familyKey)
		return processor.Result{Outcome: processor.OutcomeFamilySkipped}, nil
	}

	writeResult, writeErr := p.storageSink.Write(in.OutputRoot, storage.KindAPI, in.Canonical, toWrite)
	if writeErr != nil {
		return processor.Result{}, writeErr
	}

	p.dedupIndex.MarkContentSeen(sha)
	if condTag != "" {
		p.dedupIndex.MarkETagSeen(in.URLKey, condTag)
	}
	if redacted {
		p.metadataSink.RecordRedacted(in.Canonical.String())
	}

	fileRecord := manifest.FileRecord{
		Kind:       string(storage.KindAPI),
		SourceURL:  in.Canonical.String(),
		Path:       writeResult.RelativePath(),
		SHA256:     sha,
		Size:       int64(len(in.Body)),
		Status:     in.Status,
		Depth:      in.Depth,
		CapturedAt: processor.CapturedAt(in.FetchedAt),
		Redacted:   redacted,
	}

	codexEntry := manifest.CodexEntry{
		Path:   writeResult.RelativePath(),
		Kind:   string(storage.KindAPI),
		SHA256: sha,
		URL:    in.Canonical.String(),
	}

	return processor.Result{
		Outcome:    processor.OutcomeSaved,
		Artifact:   &fileRecord,
		CodexEntry: &codexEntry,
	}, nil
}
