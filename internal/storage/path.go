package storage

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/kraklabs/reconcrawl/pkg/hashutil"
)

var nonAlphanumericRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases host+path and collapses runs of non-alphanumeric
// characters into a single hyphen, trimming leading/trailing hyphens
// (spec §4.11).
func Slugify(u url.URL) string {
	return slugify(u.Hostname() + u.Path)
}

// SlugifyPath slugifies the path component alone, used for api artifact
// names so endpoint paths stay stable across hostname aliases.
func SlugifyPath(u url.URL) string {
	return slugify(u.Path)
}

func slugify(raw string) string {
	slug := nonAlphanumericRun.ReplaceAllString(strings.ToLower(raw), "-")
	return strings.Trim(slug, "-")
}

// PathFor derives the relative output path for an artifact of the given
// kind and canonical URL (spec §4.11). existingJSBasenames tracks
// already-written js/<basename> files so a name collision can be resolved
// with a hash suffix; callers pass nil for html/api kinds.
func PathFor(kind Kind, canonical url.URL, existingJSBasenames map[string]bool) string {
	urlHash := hashutil.MD5Hex8([]byte(canonical.String()))

	switch kind {
	case KindHTML:
		if canonical.Path == "" || canonical.Path == "/" {
			return "pages/index.html"
		}
		slug := Slugify(canonical)
		if slug == "" {
			slug = "index"
		}
		return "pages/" + slug + "-" + urlHash + ".html"

	case KindJS:
		basename := path.Base(canonical.Path)
		if basename == "" || basename == "." || basename == "/" {
			basename = urlHash + ".js"
		}
		if existingJSBasenames != nil && existingJSBasenames[basename] {
			ext := path.Ext(basename)
			stem := strings.TrimSuffix(basename, ext)
			return "js/" + stem + "-" + urlHash + ext
		}
		return "js/" + basename

	case KindAPI:
		slug := SlugifyPath(canonical)
		if slug == "" {
			slug = "root"
		}
		return "api/" + slug + "-" + urlHash + ".json"

	default:
		return "misc/" + urlHash
	}
}
