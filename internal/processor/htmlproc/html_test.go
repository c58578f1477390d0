package htmlproc_test

import (
	"net/url"
	"testing"

	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/family"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/processor"
	"github.com/kraklabs/reconcrawl/internal/processor/htmlproc"
	"github.com/kraklabs/reconcrawl/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(t *testing.T) (*htmlproc.Processor, string) {
	t.Helper()
	dedupIndex := dedup.NewIndex(dedup.Param{})
	families := family.NewRegistry(3.5)
	sink := storage.NewLocalSink(metadata.NoopSink{})
	return htmlproc.New(htmlproc.Param{}, dedupIndex, families, sink, metadata.NoopSink{}), t.TempDir()
}

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestProcess_SavesNewHTMLWithDiscoveredLinksAndTitle(t *testing.T) {
	p, root := newProcessor(t)

	body := []byte(`<html><head><title>ignored</title></head><body>
<h1>Welcome Page</h1>
<p>Some content that is long enough to fingerprint meaningfully across multiple shingles of text.</p>
<a href="/docs/next">Next</a>
</body></html>`)

	result, err := p.Process(htmlproc.Input{
		OutputRoot: root,
		Canonical:  mustURL(t, "https://example.com/docs/start"),
		Body:       body,
		Depth:      1,
		Status:     200,
	})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, result.Outcome)
	require.NotNil(t, result.Artifact)
	require.NotNil(t, result.CodexEntry)

	assert.Contains(t, result.Artifact.Path, "pages/")
	assert.NotEmpty(t, result.Artifact.SHA256)

	foundNext := false
	for _, d := range result.DiscoveredURLs {
		if d.Raw == "/docs/next" {
			foundNext = true
			assert.Equal(t, "html-discovery", d.Reason)
		}
	}
	assert.True(t, foundNext)

	joined := ""
	for _, h := range result.CodexEntry.Hints {
		joined += h
	}
	assert.Contains(t, joined, "Welcome Page")
}

func TestProcess_ExactDuplicateContentIsSkipped(t *testing.T) {
	p, root := newProcessor(t)
	body := []byte(`<html><body><h1>Same</h1><p>identical body content for dedup test purposes here.</p></body></html>`)

	first, err := p.Process(htmlproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/a"), Body: body})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, first.Outcome)

	second, err := p.Process(htmlproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/b"), Body: body})
	require.Nil(t, err)
	assert.Equal(t, processor.OutcomeDuplicate, second.Outcome)
	assert.Nil(t, second.Artifact)
}

func TestProcess_NearDuplicateHTMLIsSkipped(t *testing.T) {
	p, root := newProcessor(t)

	base := `<html><body><h1>Template Page</h1><p>This is a shared template body used across many generated pages in this test scenario to build a realistic fingerprint.</p></body></html>`
	variant := `<html><body><h1>Template Page</h1><p>This is a shared template body used across many generated pages in this test scenario to build a realistic fingerprint!</p></body></html>`

	first, err := p.Process(htmlproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/t1"), Body: []byte(base)})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, first.Outcome)

	second, err := p.Process(htmlproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/t2"), Body: []byte(variant)})
	require.Nil(t, err)
	assert.Equal(t, processor.OutcomeNearDuplicate, second.Outcome)
}

func TestProcess_FamilyCapSkipsBeyondMaxSamples(t *testing.T) {
	dedupIndex := dedup.NewIndex(dedup.Param{})
	families := family.NewRegistry(3.5)
	sink := storage.NewLocalSink(metadata.NoopSink{})
	p := htmlproc.New(htmlproc.Param{FamilyMaxSamples: 2}, dedupIndex, families, sink, metadata.NoopSink{})
	root := t.TempDir()

	outcomes := make([]processor.Outcome, 0, 4)
	for i := 0; i < 4; i++ {
		body := []byte("<html><body><h1>Item</h1><p>distinct body content number " + string(rune('A'+i)) + " padded out with enough unique words to avoid near-duplicate collisions across items in this family cap test.</p></body></html>")
		result, err := p.Process(htmlproc.Input{
			OutputRoot: root,
			Canonical:  mustURL(t, "https://example.com/store/item/"+string(rune('1'+i))),
			Body:       body,
			Status:     200,
		})
		require.Nil(t, err)
		outcomes = append(outcomes, result.Outcome)
	}

	saved := 0
	for _, o := range outcomes {
		if o == processor.OutcomeSaved {
			saved++
		}
	}
	assert.LessOrEqual(t, saved, 2)
	assert.Contains(t, outcomes, processor.OutcomeFamilySkipped)
}

func TestProcess_PaginationSiblingWithinDiffThresholdIsSkipped(t *testing.T) {
	p, root := newProcessor(t)

	page1 := []byte(`<html><body><h1>Listing</h1><p>` + repeat("row ", 50) + `</p></body></html>`)
	page2 := []byte(`<html><body><h1>Listing</h1><p>` + repeat("row ", 50) + `extra</p></body></html>`)

	firstResult, err := p.Process(htmlproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/list?page=1"), Body: page1})
	require.Nil(t, err)
	require.Equal(t, processor.OutcomeSaved, firstResult.Outcome)

	secondResult, err := p.Process(htmlproc.Input{OutputRoot: root, Canonical: mustURL(t, "https://example.com/list?page=2"), Body: page2})
	require.Nil(t, err)
	assert.Equal(t, processor.OutcomePaginationSkipped, secondResult.Outcome)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
