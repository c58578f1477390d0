package jsproc_test

import (
	"net/url"
	"testing"

	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/processor"
	"github.com/kraklabs/reconcrawl/internal/processor/jsproc"
	"github.com/kraklabs/reconcrawl/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(t *testing.T, param jsproc.Param) (*jsproc.Processor, string) {
	t.Helper()
	dedupIndex := dedup.NewIndex(dedup.Param{})
	sink := storage.NewLocalSink(metadata.NoopSink{})
	return jsproc.New(param, dedupIndex, sink, metadata.NoopSink{}), t.TempDir()
}

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestProcess_SavesNewJSAndExtractsEndpoints(t *testing.T) {
	p, root := newProcessor(t, jsproc.Param{})

	body := []byte(`
		fetch('/api/v1/users').then(r => r.json());
		axios.post("/api/v1/login", payload);
		const x = "https://other.example.com/graphql";
	`)

	result, err := p.Process(jsproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/static/app.js"),
		Body:       body,
		Status:     200,
	})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, result.Outcome)
	require.NotNil(t, result.Artifact)
	assert.Contains(t, result.Artifact.Path, "js/")

	assert.Len(t, result.Endpoints, 3)

	reasons := map[string]bool{}
	for _, d := range result.DiscoveredURLs {
		reasons[d.Raw] = true
		assert.Equal(t, "js-endpoint", d.Reason)
	}
	assert.True(t, reasons["/api/v1/users"])
	assert.True(t, reasons["https://other.example.com/graphql"])
}

func TestProcess_ExactDuplicateContentIsSkipped(t *testing.T) {
	p, root := newProcessor(t, jsproc.Param{})
	body := []byte(`console.log("static bundle");`)

	first, err := p.Process(jsproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/a.js"), Body: body})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, first.Outcome)

	second, err := p.Process(jsproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/b.js"), Body: body})
	require.Nil(t, err)
	assert.Equal(t, processor.OutcomeDuplicate, second.Outcome)
}

func TestProcess_HashedBasenameFingerprintFamilyKeepsOneCopy(t *testing.T) {
	p, root := newProcessor(t, jsproc.Param{})

	first, err := p.Process(jsproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/static/app.3f9a2b1c.js"),
		Body:       []byte(`console.log("build one");`),
	})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, first.Outcome)

	second, err := p.Process(jsproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/static/app.9988aa11.js"),
		Body:       []byte(`console.log("build two, different bytes entirely");`),
	})
	require.Nil(t, err)
	assert.Equal(t, processor.OutcomeDuplicate, second.Outcome)
}

func TestProcess_DifferentStemsAreNotCollapsed(t *testing.T) {
	p, root := newProcessor(t, jsproc.Param{})

	first, err := p.Process(jsproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/static/app.3f9a2b1c.js"),
		Body:       []byte(`console.log("app bundle");`),
	})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, first.Outcome)

	second, err := p.Process(jsproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/static/vendor.9988aa11.js"),
		Body:       []byte(`console.log("vendor bundle, unrelated stem entirely");`),
	})
	require.Nil(t, err)
	assert.Equal(t, processor.OutcomeSaved, second.Outcome)
}

func TestProcess_SameOriginSourceMapIsDiscoveredWhenEnabled(t *testing.T) {
	p, root := newProcessor(t, jsproc.Param{ResolveSourceMaps: true})

	body := []byte("console.log(1);\n//# sourceMappingURL=app.js.map\n")
	result, err := p.Process(jsproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/static/app.js"),
		Body:       body,
	})
	require.Nil(t, err)

	found := false
	for _, d := range result.DiscoveredURLs {
		if d.Reason == "js-sourcemap" {
			found = true
			assert.Contains(t, d.Raw, "app.js.map")
		}
	}
	assert.True(t, found)
}

func TestProcess_CrossOriginSourceMapIsIgnored(t *testing.T) {
	p, root := newProcessor(t, jsproc.Param{ResolveSourceMaps: true})

	body := []byte("console.log(1);\n//# sourceMappingURL=https://cdn.other.com/app.js.map\n")
	result, err := p.Process(jsproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/static/app.js"),
		Body:       body,
	})
	require.Nil(t, err)

	for _, d := range result.DiscoveredURLs {
		assert.NotEqual(t, "js-sourcemap", d.Reason)
	}
}
