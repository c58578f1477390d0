package router

import (
	"net/url"
	"strings"

	"github.com/kraklabs/reconcrawl/pkg/fileutil"
)

/*
Content Router (spec §4.7)

Routes a fetched response to one of {html, js, api, binary} by
content-type substring match. When the origin server omits a
Content-Type header entirely, falls back to a best-effort guess from
the URL's file extension, restricted to the caller's configured
include set — never guesses a kind the crawl wasn't asked to process.
*/

var extensionKinds = map[string]Kind{
	"html": KindHTML,
	"htm":  KindHTML,
	"js":   KindJS,
	"mjs":  KindJS,
	"json": KindAPI,
}

// Route classifies contentType, falling back to requestURL's extension
// when contentType is empty. includeExtensions restricts which
// extension-derived kinds are trusted; an extension outside that set
// routes to KindBinary rather than guessing.
func Route(contentType string, requestURL url.URL, includeExtensions map[string]bool) Kind {
	if kind, ok := routeByContentType(contentType); ok {
		return kind
	}
	if contentType != "" {
		return KindBinary
	}
	return routeByExtension(requestURL, includeExtensions)
}

func routeByContentType(contentType string) (Kind, bool) {
	lower := strings.ToLower(contentType)
	switch {
	case lower == "":
		return "", false
	case strings.Contains(lower, "text/html"), strings.Contains(lower, "application/xhtml"):
		return KindHTML, true
	case strings.Contains(lower, "javascript"), strings.Contains(lower, "ecmascript"):
		return KindJS, true
	case strings.Contains(lower, "json"):
		return KindAPI, true
	default:
		return KindBinary, true
	}
}

func routeByExtension(requestURL url.URL, includeExtensions map[string]bool) Kind {
	ext := strings.ToLower(fileutil.GetFileExtension(requestURL.Path))
	if ext == "" {
		return KindBinary
	}
	if len(includeExtensions) > 0 && !includeExtensions[ext] {
		return KindBinary
	}
	kind, ok := extensionKinds[ext]
	if !ok {
		return KindBinary
	}
	return kind
}
