package scope

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kraklabs/reconcrawl/pkg/fileutil"
)

// Guard decides whether a canonical URL may be fetched (spec §4.2).
type Guard interface {
	Allowed(u url.URL) bool
}

// RuleGuard is the only Guard implementation: a closed set of rules
// compiled once from a Param at construction time.
type RuleGuard struct {
	allowedDomains    []string
	excludeExtensions map[string]struct{}
	disallowed        []*regexp.Regexp
}

// NewRuleGuard compiles disallowed-path wildcards into anchored,
// case-insensitive regexps once, so Allowed never re-parses a pattern
// per call (spec §4.2's wildcard grammar: `*` is the only live
// metacharacter and becomes `.*`; every other regexp metacharacter in
// the pattern is escaped literally; the result is anchored at both ends
// and matched case-insensitively).
func NewRuleGuard(param Param) (*RuleGuard, error) {
	excl := make(map[string]struct{}, len(param.ExcludeExtensions))
	for _, ext := range param.ExcludeExtensions {
		excl[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	compiled := make([]*regexp.Regexp, 0, len(param.DisallowedPaths))
	for _, pattern := range param.DisallowedPaths {
		re, err := compileWildcard(pattern)
		if err != nil {
			return nil, &ScopeError{Message: err.Error(), Pattern: pattern}
		}
		compiled = append(compiled, re)
	}

	domains := make([]string, len(param.AllowedDomains))
	for i, d := range param.AllowedDomains {
		domains[i] = strings.ToLower(d)
	}

	return &RuleGuard{
		allowedDomains:    domains,
		excludeExtensions: excl,
		disallowed:        compiled,
	}, nil
}

// compileWildcard turns a `disallowed_paths` entry into an anchored,
// case-insensitive regexp per spec §4.2: `*` becomes `.*`, every other
// regexp metacharacter is escaped so it matches itself literally.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	segments := strings.Split(pattern, "*")
	for i, seg := range segments {
		segments[i] = regexp.QuoteMeta(seg)
	}
	return regexp.Compile("(?is)^" + strings.Join(segments, ".*") + "$")
}

// Allowed implements Guard. Rule order matters only for the §4.2 "a
// rejected URL is logged when its parent was in scope" contract upstream
// of this function; here every rule is independently sufficient to
// reject.
func (g *RuleGuard) Allowed(u url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !g.hostAllowed(u.Hostname()) {
		return false
	}
	if ext := strings.ToLower(fileutil.GetFileExtension(u.Path)); ext != "" {
		if _, excluded := g.excludeExtensions[ext]; excluded {
			return false
		}
	}
	for _, re := range g.disallowed {
		if re.MatchString(u.Path) {
			return false
		}
	}
	return true
}

func (g *RuleGuard) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range g.allowedDomains {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
