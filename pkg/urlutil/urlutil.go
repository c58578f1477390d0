package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/kraklabs/reconcrawl/pkg/hashutil"
)

// ErrInvalidURL is returned by Canonicalize whenever the input cannot be
// turned into an admissible canonical URL (spec §4.1's InvalidURL).
type ErrInvalidURL struct {
	Raw    string
	Reason string
}

func (e *ErrInvalidURL) Error() string {
	return fmt.Sprintf("invalid url %q: %s", e.Raw, e.Reason)
}

// DefaultNoisePatterns is the default set of query-parameter name patterns
// dropped during canonicalization (spec §4.1). A trailing `*` is a prefix
// wildcard.
var DefaultNoisePatterns = []string{
	"utm_*",
	"gclid",
	"fbclid",
	"session*",
}

// Result is the output of Canonicalize: the deterministic normalized form
// and its stable content-addressed key.
type Result struct {
	Canonical url.URL
	URLKey    string
}

// String returns the canonical form serialized back to a URL string.
func (r Result) String() string {
	return r.Canonical.String()
}

// Canonicalize applies the deterministic normalization from spec §4.1 to a
// raw URL string, optionally resolving it against a base URL first.
//
// Order of operations matters and mirrors the spec exactly: relative
// resolution, scheme gate, host lowercasing, default-port drop, fragment drop, dot-segment
// collapse, trailing-slash rule, query sort + noise-param drop, and
// percent-encoding normalization, before the url_key (sha1 of the
// canonical string) is computed.
func Canonicalize(raw string, base *url.URL) (Result, error) {
	return CanonicalizeWithNoise(raw, base, DefaultNoisePatterns)
}

// CanonicalizeWithNoise is Canonicalize with a caller-supplied noise-pattern
// set, used when config overrides crawl.normalize_query.drop_params.
func CanonicalizeWithNoise(raw string, base *url.URL, noisePatterns []string) (Result, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Result{}, &ErrInvalidURL{Raw: raw, Reason: err.Error()}
	}

	if base != nil && !parsed.IsAbs() {
		parsed = base.ResolveReference(parsed)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Result{}, &ErrInvalidURL{Raw: raw, Reason: "scheme must be http or https"}
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	// Drop default ports.
	if host, port := parsed.Hostname(), parsed.Port(); port != "" {
		if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
			parsed.Host = host
		}
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	parsed.Path = collapseDotSegments(parsed.Path)
	parsed.Path = normalizeTrailingSlash(parsed.Path)
	parsed.Path = normalizePercentEncoding(parsed.Path)
	parsed.RawPath = normalizePercentEncoding(parsed.RawPath)

	parsed.RawQuery = normalizeQuery(parsed.RawQuery, noisePatterns)
	parsed.ForceQuery = false

	canonicalStr := parsed.String()
	key := hashutil.SHA1Hex([]byte(canonicalStr))

	return Result{Canonical: *parsed, URLKey: key}, nil
}

// collapseDotSegments removes "." and ".." path segments the way path.Clean
// does, while preserving a trailing slash the input had.
func collapseDotSegments(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "/"
	}
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(cleaned, "/") {
		cleaned += "/"
	}
	return cleaned
}

// normalizeTrailingSlash applies the spec §4.1 rule: bare host (empty path)
// becomes "/"; otherwise a single trailing slash is stripped, except root.
func normalizeTrailingSlash(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return strings.TrimSuffix(p, "/")
}

var percentEncodedRe = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)

// normalizePercentEncoding uppercases the hex digits of any percent-encoded
// triplet, per spec §4.1.
func normalizePercentEncoding(s string) string {
	return percentEncodedRe.ReplaceAllStringFunc(s, strings.ToUpper)
}

// normalizeQuery sorts query parameters lexicographically by key then value
// and drops any parameter matching a noise pattern.
func normalizeQuery(rawQuery string, noisePatterns []string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}

	for key := range values {
		if matchesAnyNoisePattern(key, noisePatterns) {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	first := true
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func matchesAnyNoisePattern(key string, patterns []string) bool {
	lowerKey := strings.ToLower(key)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if strings.HasSuffix(p, "*") {
			if strings.HasPrefix(lowerKey, strings.TrimSuffix(p, "*")) {
				return true
			}
			continue
		}
		if lowerKey == p {
			return true
		}
	}
	return false
}
