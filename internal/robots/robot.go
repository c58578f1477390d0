package robots

import (
	"context"
	"net/url"

	"github.com/kraklabs/reconcrawl/internal/robots/cache"
)

/*
Gate enforces robots.txt before a candidate URL reaches the Fetcher's
HTTP call. The crawler must never bypass a disallow rule — fetching an
unreachable or malformed robots.txt degrades to allow-by-default
(EmptyRuleSet), matching standard crawler behavior for hosts that
publish no robots.txt at all.
*/
type Gate struct {
	fetcher *RobotsFetcher
}

func NewGate(userAgent string) *Gate {
	return &Gate{fetcher: NewRobotsFetcher(nil, userAgent, cache.NewMemoryCache())}
}

// Allowed fetches (or reuses the cached) robots.txt for u's host and
// reports whether u's path may be fetched under this gate's user agent.
func (g *Gate) Allowed(ctx context.Context, u url.URL) bool {
	result, err := g.fetcher.Fetch(ctx, u.Scheme, u.Host)
	if err != nil {
		return true
	}

	rs := MapResponseToRuleSet(result.Response, g.fetcher.UserAgent(), result.FetchedAt)
	decision := Decide(rs, u)
	return decision.Allowed
}
