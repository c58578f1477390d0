package orchestrator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/reconcrawl/internal/config"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/orchestrator"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>home</h1><a href="/about">about</a><script src="/app.js"></script></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>about page with enough words to pass the content threshold check here</h1><p>filler filler filler filler filler filler filler filler</p></body></html>`))
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(`fetch("/api/widgets")`))
	})
	mux.HandleFunc("/api/widgets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"widgets":[1,2,3]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func baseConfig(t *testing.T, srv *httptest.Server, outputRoot string) config.Config {
	t.Helper()
	seed, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	cfg, err := config.WithDefault([]url.URL{*seed}).
		WithRootDir(outputRoot).
		WithDepthMax(3).
		WithPagesMax(5).
		WithJSMax(5).
		WithAPIMax(5).
		WithConcurrency(1).
		WithRateLimitRPS(1000).
		WithTimeout(5 * time.Second).
		WithTimeMax(10 * time.Second).
		WithMaxAttempt(1).
		WithUserAgent("reconcrawl-test/1.0").
		Build()
	require.NoError(t, err)
	return cfg
}

func TestRun_CrawlsSeedToCompletion(t *testing.T) {
	srv := newTestServer(t)
	outputRoot := t.TempDir()
	cfg := baseConfig(t, srv, outputRoot)

	orc, err := orchestrator.New(cfg, metadata.NoopSink{})
	require.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, runErr := orc.Run(ctx)
	require.Nil(t, runErr)

	assert.Equal(t, "frontier_exhausted", result.StopReason)
	assert.Equal(t, 2, result.Stats.Pages)
	assert.Equal(t, 1, result.Stats.JS)
	assert.Equal(t, 1, result.Stats.API)

	_, statErr := os.Stat(filepath.Join(outputRoot, "manifest.json"))
	assert.NoError(t, statErr)
	_, indexErr := os.Stat(filepath.Join(outputRoot, "INDEX.md"))
	assert.NoError(t, indexErr)
	_, checkpointErr := os.Stat(filepath.Join(outputRoot, "checkpoint.json"))
	assert.NoError(t, checkpointErr)
}

func TestRun_DryRunWritesNothingToDisk(t *testing.T) {
	srv := newTestServer(t)
	outputRoot := filepath.Join(t.TempDir(), "nonexistent")
	seed, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	cfg, err := config.WithDefault([]url.URL{*seed}).
		WithRootDir(outputRoot).
		WithDepthMax(1).
		WithPagesMax(2).
		WithConcurrency(1).
		WithRateLimitRPS(1000).
		WithTimeout(5 * time.Second).
		WithTimeMax(5 * time.Second).
		WithMaxAttempt(1).
		WithDryRun(true).
		Build()
	require.NoError(t, err)

	orc, err2 := orchestrator.New(cfg, metadata.NoopSink{})
	require.Nil(t, err2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, runErr := orc.Run(ctx)
	require.Nil(t, runErr)

	_, statErr := os.Stat(outputRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_RestoresFromCheckpoint(t *testing.T) {
	srv := newTestServer(t)
	outputRoot := t.TempDir()
	cfg := baseConfig(t, srv, outputRoot)

	first, err := orchestrator.New(cfg, metadata.NoopSink{})
	require.Nil(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, runErr := first.Run(ctx)
	require.Nil(t, runErr)

	second, err2 := orchestrator.New(cfg, metadata.NoopSink{})
	require.Nil(t, err2)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	result, runErr2 := second.Run(ctx2)
	require.Nil(t, runErr2)

	assert.Equal(t, "frontier_exhausted", result.StopReason)
	assert.Equal(t, 2, result.Stats.Pages)
}
