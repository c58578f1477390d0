package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/robots"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/limiter"
	"github.com/kraklabs/reconcrawl/pkg/retry"
)

/*
Responsibilities (spec §4.6)

- Perform HTTP requests under a global + per-host concurrency bound.
- Apply per-host rate limiting, exponential backoff on 429/5xx.
- Honor robots.txt before every request.
- Enforce a response-size cap per content-type.
- Classify every response into a typed, retryable-or-not FetchError.

HTTPFetcher never parses content; it only returns bytes and metadata.
Rendering (headless browser) is out of scope — RenderedHTML mirrors Body
for text/html responses, since this implementation has no renderer.

Fetch is safe to call concurrently: the concurrency limiter, rate
limiter, robots cache, and metadata sink are all independently
synchronized. internal/orchestrator's fetch pipeline relies on this to
run up to concurrency fetches in parallel while still consuming
completed responses one at a time.
*/
type HTTPFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	rateLimiter  limiter.RateLimiter
	concurrency  *limiter.ConcurrencyLimiter
	robotsGate   *robots.Gate
	userAgent    string

	antiBotRPSHalved sync.Map // host -> struct{}, sticky for the run
}

func NewHTTPFetcher(
	metadataSink metadata.MetadataSink,
	rateLimiter limiter.RateLimiter,
	concurrency *limiter.ConcurrencyLimiter,
	robotsGate *robots.Gate,
	userAgent string,
) *HTTPFetcher {
	return &HTTPFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{},
		rateLimiter:  rateLimiter,
		concurrency:  concurrency,
		robotsGate:   robotsGate,
		userAgent:    userAgent,
	}
}

func (f *HTTPFetcher) Fetch(
	ctx context.Context,
	target url.URL,
	depth int,
	strategy Strategy,
	retryParam retry.RetryParam,
) (Response, failure.ClassifiedError) {
	const callerMethod = "HTTPFetcher.Fetch"
	start := time.Now()

	if f.robotsGate != nil && !f.robotsGate.Allowed(ctx, target) {
		err := &FetchError{Message: "disallowed by robots.txt", Retryable: false, Cause: ErrCauseOutOfScope}
		f.recordFetchError(callerMethod, target, err)
		return Response{}, err
	}

	host := target.Hostname()
	release, acqErr := f.concurrency.Acquire(ctx, host)
	if acqErr != nil {
		err := &FetchError{Message: fmt.Sprintf("concurrency acquire: %v", acqErr), Retryable: true, Cause: ErrCauseNetworkFailure}
		return Response{}, err
	}
	defer release()

	f.waitForHostSlot(ctx, host)

	result := retry.Retry(retryParam, func() (Response, failure.ClassifiedError) {
		return f.performFetch(ctx, target, strategy)
	})

	duration := time.Since(start)
	resp := result.Value()
	retryErr := result.Err()

	var statusCode int
	if retryErr == nil {
		statusCode = resp.Status
		f.rateLimiter.ResetBackoff(host)
	} else {
		f.rateLimiter.Backoff(host)
	}
	f.rateLimiter.MarkLastFetchAsNow(host)

	f.metadataSink.RecordFetch(metadata.FetchEvent{
		URL:         target.String(),
		HTTPStatus:  statusCode,
		Duration:    duration,
		ContentType: resp.ContentType,
		RetryCount:  result.Attempts(),
		CrawlDepth:  depth,
	})

	if retryErr != nil {
		var retryExhausted *retry.RetryError
		if errors.As(retryErr, &retryExhausted) {
			f.recordRetryError(callerMethod, target, retryExhausted)
		} else {
			f.recordFetchError(callerMethod, target, retryErr)
		}
		return Response{}, retryErr
	}

	if looksLikeAntiBot(resp) {
		f.triggerAntiBotSlowdown(host)
		err := &FetchError{Message: "anti-bot challenge detected", Retryable: false, Cause: ErrCauseAntiBotDetected}
		f.recordFetchError(callerMethod, target, err)
		return Response{}, err
	}

	return resp, nil
}

// waitForHostSlot blocks until the rate limiter's resolved per-host delay
// has elapsed, doubling the effective interval for any host that
// previously triggered the anti-bot slowdown (spec §7's
// "reduce RPS by half for the remainder of run").
func (f *HTTPFetcher) waitForHostSlot(ctx context.Context, host string) {
	delay := f.rateLimiter.ResolveDelay(host)
	if _, halved := f.antiBotRPSHalved.Load(host); halved {
		delay *= 2
	}
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (f *HTTPFetcher) triggerAntiBotSlowdown(host string) {
	f.antiBotRPSHalved.Store(host, struct{}{})
}

func (f *HTTPFetcher) performFetch(ctx context.Context, target url.URL, strategy Strategy) (Response, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Response{}, &FetchError{Message: fmt.Sprintf("failed to create request: %v", err), Retryable: false, Cause: ErrCauseNetworkFailure}
	}
	for key, value := range requestHeaders(f.userAgent) {
		req.Header.Set(key, value)
	}

	client := f.httpClient
	if strategy.Timeout > 0 {
		timeoutClient := *f.httpClient
		timeoutClient.Timeout = strategy.Timeout
		client = &timeoutClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Response{}, &FetchError{Message: fmt.Sprintf("server error: %d", resp.StatusCode), Retryable: true, Cause: ErrCauseRequest5xx}
	case resp.StatusCode == 429:
		return Response{}, &FetchError{Message: "rate limited (429)", Retryable: true, Cause: ErrCauseRequestTooMany}
	case resp.StatusCode == 408:
		return Response{}, &FetchError{Message: "request timeout (408)", Retryable: true, Cause: ErrCauseTimeout}
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return Response{}, &FetchError{Message: fmt.Sprintf("access denied (%d)", resp.StatusCode), Retryable: false, Cause: ErrCauseRequestPageForbidden}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Response{}, &FetchError{Message: fmt.Sprintf("client error: %d", resp.StatusCode), Retryable: false, Cause: ErrCauseRequestOther4xx}
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return Response{}, &FetchError{Message: fmt.Sprintf("redirect error: %d", resp.StatusCode), Retryable: false, Cause: ErrCauseRedirectLimitExceeded}
	}

	contentType := resp.Header.Get("Content-Type")
	bodyCap := strategy.capFor(contentType)
	limitedBody := io.LimitReader(resp.Body, bodyCap+1)
	body, err := io.ReadAll(limitedBody)
	if err != nil {
		return Response{}, &FetchError{Message: fmt.Sprintf("failed to read response body: %v", err), Retryable: true, Cause: ErrCauseReadResponseBodyError}
	}
	if int64(len(body)) > bodyCap {
		return Response{}, &FetchError{Message: fmt.Sprintf("body exceeds cap of %d bytes", bodyCap), Retryable: false, Cause: ErrCauseBodyTooLarge}
	}

	responseHeaders := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}

	result := Response{
		FinalURL:    finalURL,
		Status:      resp.StatusCode,
		Headers:     responseHeaders,
		ContentType: contentType,
		Body:        body,
		FetchedAt:   time.Now(),
	}
	if isHTMLContent(contentType) {
		result.RenderedHTML = string(body)
	}
	return result, nil
}

func classifyTransportError(err error) *FetchError {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no such host") || strings.Contains(lower, "dns"):
		return &FetchError{Message: fmt.Sprintf("dns failure: %v", err), Retryable: true, Cause: ErrCauseDNSFailure}
	case strings.Contains(lower, "tls") || strings.Contains(lower, "certificate") || strings.Contains(lower, "x509"):
		return &FetchError{Message: fmt.Sprintf("tls failure: %v", err), Retryable: true, Cause: ErrCauseTLSFailure}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return &FetchError{Message: fmt.Sprintf("timeout: %v", err), Retryable: true, Cause: ErrCauseTimeout}
	default:
		return &FetchError{Message: fmt.Sprintf("request failed: %v", err), Retryable: true, Cause: ErrCauseNetworkFailure}
	}
}

// looksLikeAntiBot is a conservative heuristic over headers/status/body
// size for Cloudflare/Akamai-style interstitial challenge pages (spec
// §7's Fetch.AntiBot).
func looksLikeAntiBot(resp Response) bool {
	if resp.Status == 503 {
		return true
	}
	server := strings.ToLower(resp.HeaderValue("Server"))
	if strings.Contains(server, "cloudflare") && resp.HeaderValue("cf-mitigated") != "" {
		return true
	}
	if resp.Status == 200 && len(resp.Body) > 0 && len(resp.Body) < 4096 {
		lower := strings.ToLower(string(resp.Body))
		if strings.Contains(lower, "checking your browser") || strings.Contains(lower, "captcha") {
			return true
		}
	}
	return false
}

func isHTMLContent(contentType string) bool {
	lower := strings.ToLower(contentType)
	return strings.Contains(lower, "text/html") || strings.Contains(lower, "application/xhtml")
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip, deflate, br",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}

func (f *HTTPFetcher) recordFetchError(callerMethod string, target url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		f.metadataSink.RecordError(
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err,
			metadata.NewAttr(metadata.AttrURL, target.String()),
		)
	}
}

func (f *HTTPFetcher) recordRetryError(callerMethod string, target url.URL, err *retry.RetryError) {
	f.metadataSink.RecordError(
		"fetcher",
		callerMethod,
		metadata.CauseNetworkFailure,
		err,
		metadata.NewAttr(metadata.AttrURL, target.String()),
	)
}

var _ Fetcher = (*HTTPFetcher)(nil)
