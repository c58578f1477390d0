/*
Package jsproc implements the JS Processor (spec §4.9): content-hash
dedup, hashed-basename fingerprint-family collapsing, atomic storage, and
a literal-string scan for API-shaped endpoint candidates and same-origin
source maps.
*/
package jsproc

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/manifest"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/processor"
	"github.com/kraklabs/reconcrawl/internal/storage"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/hashutil"
)

// Processor implements spec §4.9's JS Processor.
type Processor struct {
	param Param

	dedupIndex   *dedup.Index
	storageSink  storage.Sink
	metadataSink metadata.MetadataSink

	familiesMu sync.Mutex
	families   map[string]bool // blake3(host/stem.js) -> one copy already kept
}

func New(param Param, dedupIndex *dedup.Index, storageSink storage.Sink, metadataSink metadata.MetadataSink) *Processor {
	return &Processor{
		param:        param.withDefaults(),
		dedupIndex:   dedupIndex,
		storageSink:  storageSink,
		metadataSink: metadataSink,
		families:     make(map[string]bool),
	}
}

// Input is everything the orchestrator has on hand after a successful
// fetch+route to KindJS.
type Input struct {
	OutputRoot string
	Canonical  url.URL
	Body       []byte
	Depth      int
	Status     int
	FetchedAt  time.Time
}

// Process implements the spec §4.9 step sequence.
func (p *Processor) Process(in Input) (processor.Result, failure.ClassifiedError) {
	sha := hashutil.SHA256Hex(in.Body)
	if p.dedupIndex.SeenContent(sha) {
		p.metadataSink.RecordDuplicate(in.Canonical.String(), "content-hash")
		return processor.Result{Outcome: processor.OutcomeDuplicate}, nil
	}

	if familyKey, ok := fingerprintFamily(in.Canonical); ok {
		p.familiesMu.Lock()
		alreadyKept := p.families[familyKey]
		if !alreadyKept {
			p.families[familyKey] = true
		}
		p.familiesMu.Unlock()

		if alreadyKept {
			p.metadataSink.RecordDuplicate(in.Canonical.String(), "js-fingerprint-family")
			return processor.Result{Outcome: processor.OutcomeDuplicate}, nil
		}
	}

	writeResult, writeErr := p.storageSink.Write(in.OutputRoot, storage.KindJS, in.Canonical, in.Body)
	if writeErr != nil {
		return processor.Result{}, writeErr
	}
	p.dedupIndex.MarkContentSeen(sha)

	source := string(in.Body)
	candidates := extractEndpoints(source)
	endpoints := make([]manifest.EndpointRecord, 0, len(candidates))
	discovered := make([]processor.DiscoveredURL, 0, len(candidates))
	for _, c := range candidates {
		endpoints = append(endpoints, manifest.EndpointRecord{URL: c.url, Source: "js", Score: c.score})
		discovered = append(discovered, processor.DiscoveredURL{Raw: c.url, Reason: "js-endpoint"})
	}

	if p.param.ResolveSourceMaps {
		if mapURL, ok := sameOriginSourceMap(source, in.Canonical); ok {
			discovered = append(discovered, processor.DiscoveredURL{Raw: mapURL, Reason: "js-sourcemap"})
		}
	}

	fileRecord := manifest.FileRecord{
		Kind:       string(storage.KindJS),
		SourceURL:  in.Canonical.String(),
		Path:       writeResult.RelativePath(),
		SHA256:     writeResult.SHA256(),
		Size:       int64(len(in.Body)),
		Status:     in.Status,
		Depth:      in.Depth,
		CapturedAt: processor.CapturedAt(in.FetchedAt),
	}

	var hints []string
	if len(endpoints) > 0 {
		hints = append(hints, "endpoints: "+strconv.Itoa(len(endpoints)))
	}
	codexEntry := manifest.CodexEntry{
		Path:   writeResult.RelativePath(),
		Kind:   string(storage.KindJS),
		SHA256: writeResult.SHA256(),
		URL:    in.Canonical.String(),
		Hints:  hints,
	}

	return processor.Result{
		Outcome:        processor.OutcomeSaved,
		Artifact:       &fileRecord,
		CodexEntry:     &codexEntry,
		Endpoints:      endpoints,
		DiscoveredURLs: discovered,
	}, nil
}

// fingerprintFamily reports the hashed-basename family a URL belongs to
// (spec §4.9 step 2): `<stem>.<hex>.js` files sharing a stem collapse to
// one kept copy. The family key is blake3'd purely to keep the in-memory
// registry's keys a fixed, compact size.
func fingerprintFamily(canonical url.URL) (string, bool) {
	base := canonical.Path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	match := fingerprintedBasename.FindStringSubmatch(base)
	if match == nil {
		return "", false
	}
	stem := match[1]
	return hashutil.BLAKE3Hex([]byte(canonical.Hostname() + "/" + stem + ".js")), true
}

// extractEndpoints scans source for literal-string call arguments shaped
// like API calls (spec §4.9 step 4), deduplicating by URL.
func extractEndpoints(source string) []endpointCandidate {
	scores := []float64{1.0, 1.0, 1.0, 0.6, 0.7}
	seen := make(map[string]bool)
	var out []endpointCandidate
	for i, re := range endpointPatterns {
		for _, m := range re.FindAllStringSubmatch(source, -1) {
			candidate := m[1]
			if seen[candidate] {
				continue
			}
			seen[candidate] = true
			out = append(out, endpointCandidate{url: candidate, score: scores[i]})
		}
	}
	return out
}

// sameOriginSourceMap looks for a trailing sourceMappingURL directive and
// resolves it against canonical, reporting it only when the resolved URL
// shares canonical's host (spec §4.9 step 5).
func sameOriginSourceMap(source string, canonical url.URL) (string, bool) {
	match := sourceMapComment.FindStringSubmatch(source)
	if match == nil {
		return "", false
	}
	ref, err := url.Parse(match[1])
	if err != nil {
		return "", false
	}
	resolved := canonical.ResolveReference(ref)
	if resolved.Hostname() != "" && resolved.Hostname() != canonical.Hostname() {
		return "", false
	}
	return resolved.String(), true
}
