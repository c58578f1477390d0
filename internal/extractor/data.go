package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam tunes the heuristic-fallback layer of content extraction
// (used to build the short Markdown preview carried in a Codex Entry's
// hints[]). Only the two fields actually consulted by findBestContentContainer
// (which passes LinkDensityThreshold on to calculateContentScore) are exposed; the teacher's config additionally
// named per-element score multipliers and minimum thresholds that were never
// wired into dom.go (confirmed: calculateContentScore hardcodes them with a
// "move into ExtractParam" TODO) — those are not carried forward here.
type ExtractParam struct {
	// BodySpecificityBias: a child container is preferred over <body> only
	// when its score >= BodySpecificityBias * bodyScore.
	BodySpecificityBias float64
	// LinkDensityThreshold: max ratio of link text to total text before a
	// density penalty applies.
	LinkDensityThreshold float64
}
