package family_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/reconcrawl/internal/family"
)

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	assert.NoError(t, err)
	return *u
}

func TestGeneralize_NumericSegmentBecomesID(t *testing.T) {
	a := family.Generalize(mustURL(t, "https://shop.example.org/store/item/1"), 3.5)
	b := family.Generalize(mustURL(t, "https://shop.example.org/store/item/999"), 3.5)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "{id}")
}

func TestGeneralize_HashSegmentBecomesHash(t *testing.T) {
	key := family.Generalize(mustURL(t, "https://example.org/assets/deadbeefcafe"), 3.5)
	assert.Contains(t, key, "{hash}")
}

func TestGeneralize_QueryIDCollapsed(t *testing.T) {
	a := family.Generalize(mustURL(t, "https://example.org/search?id=1"), 3.5)
	b := family.Generalize(mustURL(t, "https://example.org/search?id=2"), 3.5)
	assert.Equal(t, a, b)
}

func TestRegistry_FamilyCapEnforced(t *testing.T) {
	reg := family.NewRegistry(3.5)
	key := "shop.example.org/store/item/{id}"

	saved := 0
	for i := 0; i < 1000; i++ {
		if reg.Observe(key, family.Candidate{TitleLen: 100, BodyLen: 500, Status: 200}, 3) {
			saved++
		}
	}

	assert.Equal(t, 3, saved)
	snap := reg.Snapshot()
	assert.Equal(t, 1000, snap[key].Count)
	assert.Equal(t, 3, snap[key].SamplesSaved)
	assert.Equal(t, 997, snap[key].Skipped)
}

func TestRegistry_DivergentCandidateSkippedBeyondCap(t *testing.T) {
	reg := family.NewRegistry(3.5)
	key := "example.org/items/{id}"

	reg.Observe(key, family.Candidate{TitleLen: 100, BodyLen: 500, Status: 200}, 1)
	saved := reg.Observe(key, family.Candidate{TitleLen: 100, BodyLen: 500, Status: 404}, 1)
	assert.False(t, saved, "no candidate is saved once the family cap is reached, status-differing or not")

	snap := reg.Snapshot()
	assert.Equal(t, 1, snap[key].SamplesSaved)
}

func TestRegistry_SimilarCandidateSkippedBeyondCap(t *testing.T) {
	reg := family.NewRegistry(3.5)
	key := "example.org/items/{id}"

	reg.Observe(key, family.Candidate{TitleLen: 100, BodyLen: 500, Status: 200}, 1)
	saved := reg.Observe(key, family.Candidate{TitleLen: 105, BodyLen: 510, Status: 200}, 1)
	assert.False(t, saved)
}
