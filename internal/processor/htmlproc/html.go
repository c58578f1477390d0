/*
Package htmlproc implements the HTML Processor (spec §4.8): sha256 and
SimHash dedup, family-cap admission, atomic storage, discovered-URL
extraction, and the pagination-diff-ratio skip policy, plus a
Markdown-preview-and-title supplement for the Codex Entry's hints[],
with an independent boilerplate-stripped excerpt as a fallback signal.
*/
package htmlproc

import (
	"bytes"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/extractor"
	"github.com/kraklabs/reconcrawl/internal/family"
	"github.com/kraklabs/reconcrawl/internal/manifest"
	"github.com/kraklabs/reconcrawl/internal/mdconvert"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/processor"
	"github.com/kraklabs/reconcrawl/internal/sanitizer"
	"github.com/kraklabs/reconcrawl/internal/storage"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/hashutil"
	"golang.org/x/net/html"
)

type siblingRecord struct {
	fingerprint dedup.Fingerprint
}

// Processor implements spec §4.8's HTML Processor.
type Processor struct {
	param Param

	sanitizer    sanitizer.HtmlSanitizer
	converter    mdconvert.ConvertRule
	contentIso   extractor.DomExtractor
	dedupIndex   *dedup.Index
	families     *family.Registry
	storageSink  storage.Sink
	metadataSink metadata.MetadataSink

	siblingsMu sync.Mutex
	siblings   map[string]siblingRecord
}

func New(param Param, dedupIndex *dedup.Index, families *family.Registry, storageSink storage.Sink, metadataSink metadata.MetadataSink) *Processor {
	param = param.withDefaults()
	return &Processor{
		param:     param,
		sanitizer: sanitizer.NewHTMLSanitizer(metadataSink),
		converter: mdconvert.NewRule(metadataSink),
		contentIso: extractor.NewDomExtractor(metadataSink, extractor.ExtractParam{
			BodySpecificityBias:  param.BodySpecificityBias,
			LinkDensityThreshold: param.LinkDensityThreshold,
		}),
		dedupIndex:   dedupIndex,
		families:     families,
		storageSink:  storageSink,
		metadataSink: metadataSink,
		siblings:     make(map[string]siblingRecord),
	}
}

// Input is everything the orchestrator has on hand after a successful
// fetch+route to KindHTML.
type Input struct {
	OutputRoot string
	Canonical  url.URL
	Body       []byte
	Depth      int
	Status     int
	FetchedAt  time.Time
}

// Process implements the spec §4.8 step sequence.
func (p *Processor) Process(in Input) (processor.Result, failure.ClassifiedError) {
	sha := hashutil.SHA256Hex(in.Body)
	if p.dedupIndex.SeenContent(sha) {
		p.metadataSink.RecordDuplicate(in.Canonical.String(), "content-hash")
		return processor.Result{Outcome: processor.OutcomeDuplicate}, nil
	}

	parsed, parseErr := html.Parse(bytes.NewReader(in.Body))
	if parseErr != nil {
		procErr := &ProcessError{Message: parseErr.Error(), Retryable: false, Cause: ErrCauseUnparseable}
		p.metadataSink.RecordError("htmlproc", "Processor.Process", mapProcessErrorToMetadataCause(procErr), procErr)
		return processor.Result{}, procErr
	}

	sanitizedDoc, sanErr := p.sanitizer.Sanitize(parsed)
	if sanErr != nil {
		return processor.Result{}, sanErr
	}

	contentText := flattenText(sanitizedDoc.GetContentNode())
	fp := dedup.ComputeSimHash(contentText, p.dedupIndex.ShingleSize())
	if p.dedupIndex.NearDuplicateHTML(fp) {
		p.metadataSink.RecordDuplicate(in.Canonical.String(), "near-duplicate-simhash")
		return processor.Result{Outcome: processor.OutcomeNearDuplicate}, nil
	}

	conversion, convErr := p.converter.Convert(sanitizedDoc)
	var title, preview string
	if convErr == nil {
		title = extractTitle(conversion.GetMarkdownContent())
		preview = truncatePreview(string(conversion.GetMarkdownContent()), 280)
	}

	familyKey := p.families.Key(in.Canonical)
	candidate := family.Candidate{TitleLen: len(title), BodyLen: len(in.Body), Status: in.Status}
	if !p.families.Observe(familyKey, candidate, p.param.FamilyMaxSamples) {
		p.metadataSink.RecordFamilySkipped(in.Canonical.String(), familyKey)
		return processor.Result{Outcome: processor.OutcomeFamilySkipped}, nil
	}

	if siblingKey := paginationSiblingKey(in.Canonical); siblingKey != "" {
		p.siblingsMu.Lock()
		sibling, exists := p.siblings[siblingKey]
		if !exists {
			p.siblings[siblingKey] = siblingRecord{fingerprint: fp}
		}
		p.siblingsMu.Unlock()

		if exists {
			diffRatio := 1 - dedup.Similarity(fp, sibling.fingerprint)
			if diffRatio <= p.param.PaginationDiffThreshold {
				p.metadataSink.RecordDuplicate(in.Canonical.String(), "pagination-sibling")
				return processor.Result{Outcome: processor.OutcomePaginationSkipped}, nil
			}
		}
	}

	writeResult, writeErr := p.storageSink.Write(in.OutputRoot, storage.KindHTML, in.Canonical, in.Body)
	if writeErr != nil {
		return processor.Result{}, writeErr
	}

	p.dedupIndex.MarkContentSeen(sha)
	p.dedupIndex.RegisterHTMLFingerprint(fp)

	fileRecord := manifest.FileRecord{
		Kind:       string(storage.KindHTML),
		SourceURL:  in.Canonical.String(),
		Path:       writeResult.RelativePath(),
		SHA256:     writeResult.SHA256(),
		Size:       int64(len(in.Body)),
		Status:     in.Status,
		Depth:      in.Depth,
		CapturedAt: processor.CapturedAt(in.FetchedAt),
	}

	var hints []string
	if title != "" {
		hints = append(hints, "title: "+title)
	}
	if preview != "" {
		hints = append(hints, "preview: "+preview)
	}
	if excerpt := p.boilerplateStrippedExcerpt(in.Canonical, in.Body); excerpt != "" && excerpt != preview {
		hints = append(hints, "excerpt: "+excerpt)
	}
	codexEntry := manifest.CodexEntry{
		Path:   writeResult.RelativePath(),
		Kind:   string(storage.KindHTML),
		SHA256: writeResult.SHA256(),
		URL:    in.Canonical.String(),
		Hints:  hints,
	}

	discovered := make([]processor.DiscoveredURL, 0, len(sanitizedDoc.GetDiscoveredURLs()))
	for _, u := range sanitizedDoc.GetDiscoveredURLs() {
		discovered = append(discovered, processor.DiscoveredURL{Raw: u.String(), Reason: "html-discovery"})
	}

	return processor.Result{
		Outcome:        processor.OutcomeSaved,
		Artifact:       &fileRecord,
		CodexEntry:     &codexEntry,
		DiscoveredURLs: discovered,
	}, nil
}

// boilerplateStrippedExcerpt runs the semantic/docs-container/chrome-
// removal isolation layers independently of the sanitizer's structural
// validation, so a page the sanitizer rejects (competing roots,
// ambiguous DOM) can still contribute a usable hint. Extraction
// failures are swallowed: the excerpt is a supplementary hint, not a
// required field.
func (p *Processor) boilerplateStrippedExcerpt(canonical url.URL, body []byte) string {
	result, extractErr := p.contentIso.Extract(canonical, body)
	if extractErr != nil || result.ContentNode == nil {
		return ""
	}
	return truncatePreview(flattenText(result.ContentNode), 280)
}

// flattenText renders node's text content, space-separated, for SimHash
// shingling — goquery's Text() already walks all descendant text nodes.
func flattenText(node *html.Node) string {
	if node == nil {
		return ""
	}
	return goquery.NewDocumentFromNode(node).Text()
}

func truncatePreview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
