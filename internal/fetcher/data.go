package fetcher

import (
	"net/url"
	"strings"
	"time"
)

// WaitFor mirrors the rendering-readiness signal a headless browser
// driver would honor; this net/http-based Fetcher treats both values
// identically since it never renders (the headless-browser-driver
// contract is an external collaborator's, per the crawler's scope).
type WaitFor string

const (
	WaitForDOMContentLoaded WaitFor = "domcontentloaded"
	WaitForNetworkIdle      WaitFor = "networkidle"
)

// Strategy is the per-fetch policy passed by the orchestrator (spec
// §4.6's `fetch(url, strategy)`).
type Strategy struct {
	WaitFor             WaitFor
	Timeout             time.Duration
	MaxBodyBytes        map[string]int64 // content-type substring -> cap
	DefaultMaxBodyBytes int64
}

func (s Strategy) capFor(contentType string) int64 {
	lower := strings.ToLower(contentType)
	for substr, limit := range s.MaxBodyBytes {
		if substr != "" && strings.Contains(lower, strings.ToLower(substr)) {
			return limit
		}
	}
	if s.DefaultMaxBodyBytes > 0 {
		return s.DefaultMaxBodyBytes
	}
	return 20 * 1024 * 1024
}

// Subresource is a resource captured alongside a rendered page. Always
// empty for this Fetcher implementation, since it performs no
// rendering, but kept on Response to satisfy the §4.6 contract shape
// for any future renderer-backed Fetcher implementation.
type Subresource struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// Response is the Fetcher's result for a single attempt (spec §4.6).
type Response struct {
	FinalURL     url.URL
	Status       int
	Headers      map[string]string
	ContentType  string
	Body         []byte
	RenderedHTML string
	Subresources []Subresource
	FetchedAt    time.Time
}

func (r Response) HeaderValue(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
