package robots_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/kraklabs/reconcrawl/internal/robots"
)

func serveRobots(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(body))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func decisionFor(t *testing.T, srv *httptest.Server, userAgent, path string) robots.Decision {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}

	fetcher := robots.NewRobotsFetcherWithClient(nil, userAgent, srv.Client(), nil)
	result, fetchErr := fetcher.Fetch(context.Background(), u.Scheme, u.Host)
	if fetchErr != nil {
		t.Fatalf("fetch robots.txt: %v", fetchErr)
	}

	rs := robots.MapResponseToRuleSet(result.Response, userAgent, result.FetchedAt)
	target, err := url.Parse(srv.URL + path)
	if err != nil {
		t.Fatalf("parse target url: %v", err)
	}
	return robots.Decide(rs, *target)
}

func TestDecide_AllowAll(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nAllow: /\n")
	d := decisionFor(t, srv, "TestBot/1.0", "/anything")
	if !d.Allowed {
		t.Errorf("expected allowed, got %v (reason=%s)", d.Allowed, d.Reason)
	}
}

func TestDecide_DisallowAll(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /\n")
	d := decisionFor(t, srv, "TestBot/1.0", "/anything")
	if d.Allowed {
		t.Errorf("expected disallowed, got allowed")
	}
	if d.Reason != robots.DisallowedByRobots {
		t.Errorf("reason = %s, want %s", d.Reason, robots.DisallowedByRobots)
	}
}

func TestDecide_DisallowSpecificPath(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /admin\n")
	blocked := decisionFor(t, srv, "TestBot/1.0", "/admin/panel")
	if blocked.Allowed {
		t.Error("expected /admin/panel to be disallowed")
	}
	open := decisionFor(t, srv, "TestBot/1.0", "/docs")
	if !open.Allowed {
		t.Error("expected /docs to be allowed")
	}
}

func TestDecide_LongerAllowOverridesDisallow(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /admin\nAllow: /admin/public\n")
	d := decisionFor(t, srv, "TestBot/1.0", "/admin/public/page")
	if !d.Allowed {
		t.Error("expected the more specific Allow rule to win")
	}
}

func TestDecide_UserAgentSpecific(t *testing.T) {
	srv := serveRobots(t, "User-agent: BlockedBot\nDisallow: /\n\nUser-agent: *\nAllow: /\n")
	blocked := decisionFor(t, srv, "BlockedBot", "/page")
	if blocked.Allowed {
		t.Error("expected BlockedBot to be disallowed")
	}
	other := decisionFor(t, srv, "OtherBot", "/page")
	if !other.Allowed {
		t.Error("expected OtherBot to fall through to the wildcard group")
	}
}

func TestDecide_NoRobotsFile_AllowsByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := decisionFor(t, srv, "TestBot/1.0", "/anything")
	if !d.Allowed {
		t.Error("expected missing robots.txt to allow by default")
	}
}

func TestDecide_CrawlDelayPropagated(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nAllow: /\nCrawl-delay: 2\n")
	d := decisionFor(t, srv, "TestBot/1.0", "/page")
	if d.CrawlDelay == nil {
		t.Fatal("expected a crawl delay to be set")
	}
	if *d.CrawlDelay != 2*time.Second {
		t.Errorf("crawl delay = %v, want 2s", *d.CrawlDelay)
	}
}

func TestGate_Allowed(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /private\n")
	gate := robots.NewGate("TestBot/1.0")

	allowedURL, err := url.Parse(srv.URL + "/public")
	if err != nil {
		t.Fatal(err)
	}
	if !gate.Allowed(context.Background(), *allowedURL) {
		t.Error("expected /public to be allowed")
	}

	disallowedURL, err := url.Parse(srv.URL + "/private/secret")
	if err != nil {
		t.Fatal(err)
	}
	if gate.Allowed(context.Background(), *disallowedURL) {
		t.Error("expected /private/secret to be disallowed")
	}
}
