package fetcher

import (
	"context"
	"net/url"

	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/retry"
)

/*
Fetcher (spec §4.6)

Abstract transport contract consumed by the orchestrator:
fetch(url, strategy) -> Response | Error.

This package's HTTPFetcher is a net/http-based implementation. A
headless-browser-backed implementation is an external collaborator's
contract (the crawler's Non-goals exclude interactive UI, and the
abstract Fetcher interface is explicitly a contract boundary) — it
would satisfy the same Fetcher interface and could be swapped in
without changing the orchestrator.
*/
type Fetcher interface {
	Fetch(ctx context.Context, target url.URL, depth int, strategy Strategy, retryParam retry.RetryParam) (Response, failure.ClassifiedError)
}
