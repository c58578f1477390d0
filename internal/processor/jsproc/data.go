package jsproc

import "regexp"

// fingerprintedBasename matches webpack/esbuild-style hashed filenames
// (spec §4.9 step 2): `<stem>.<hex>.js`, hex at least 6 characters.
var fingerprintedBasename = regexp.MustCompile(`^(.*)\.([a-f0-9]{6,})\.js$`)

// endpointPatterns are the literal-string-argument scans from spec
// §4.9 step 4.
var endpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`fetch\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`),
	regexp.MustCompile(`axios\.(?:get|post|put|delete|patch)\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`),
	regexp.MustCompile(`graphql\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`),
	regexp.MustCompile(`['"` + "`" + `](/(?:api|v1|v2|graphql)[^'"` + "`" + `]*)['"` + "`" + `]`),
	regexp.MustCompile(`['"` + "`" + `](https?://[^'"` + "`" + `]+)['"` + "`" + `]`),
}

// sourceMapComment matches the trailing `//# sourceMappingURL=...`
// directive (spec §4.9 step 5).
var sourceMapComment = regexp.MustCompile(`(?m)//#\s*sourceMappingURL=(\S+)\s*$`)

// Param configures the JS Processor.
type Param struct {
	// ResolveSourceMaps enables same-origin //# sourceMappingURL discovery.
	ResolveSourceMaps bool
}

func (p Param) withDefaults() Param {
	return p
}

// endpointCandidate is one literal string argument matched by
// endpointPatterns, paired with a confidence score reflecting how
// call-site-specific the match was.
type endpointCandidate struct {
	url   string
	score float64
}
