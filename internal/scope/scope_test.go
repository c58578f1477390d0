package scope_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/reconcrawl/internal/scope"
)

func mustGuard(t *testing.T, param scope.Param) *scope.RuleGuard {
	t.Helper()
	g, err := scope.NewRuleGuard(param)
	require.NoError(t, err)
	return g
}

func TestAllowed_RejectsOutOfScopeHost(t *testing.T) {
	g := mustGuard(t, scope.Param{AllowedDomains: []string{"example.org"}})
	u, _ := url.Parse("https://evil.example.com/x")
	assert.False(t, g.Allowed(*u))
}

func TestAllowed_AcceptsSubdomain(t *testing.T) {
	g := mustGuard(t, scope.Param{AllowedDomains: []string{"example.org"}})
	u, _ := url.Parse("https://docs.example.org/x")
	assert.True(t, g.Allowed(*u))
}

func TestAllowed_RejectsNonHTTPScheme(t *testing.T) {
	g := mustGuard(t, scope.Param{AllowedDomains: []string{"example.org"}})
	u, _ := url.Parse("ftp://example.org/x")
	assert.False(t, g.Allowed(*u))
}

func TestAllowed_RejectsExcludedExtension(t *testing.T) {
	g := mustGuard(t, scope.Param{
		AllowedDomains:    []string{"example.org"},
		ExcludeExtensions: []string{"png", "jpg"},
	})
	u, _ := url.Parse("https://example.org/assets/logo.PNG")
	assert.False(t, g.Allowed(*u))
}

func TestAllowed_RejectsDisallowedPathWildcard(t *testing.T) {
	g := mustGuard(t, scope.Param{
		AllowedDomains:  []string{"example.org"},
		DisallowedPaths: []string{"/admin/*", "/internal"},
	})
	blocked, _ := url.Parse("https://example.org/admin/users")
	allowed, _ := url.Parse("https://example.org/public/users")
	assert.False(t, g.Allowed(*blocked))
	assert.True(t, g.Allowed(*allowed))
}

func TestAllowed_DisallowedPathIsCaseInsensitive(t *testing.T) {
	g := mustGuard(t, scope.Param{
		AllowedDomains:  []string{"example.org"},
		DisallowedPaths: []string{"/Admin/*"},
	})
	u, _ := url.Parse("https://example.org/admin/USERS")
	assert.False(t, g.Allowed(*u))
}

func TestAllowed_DisallowedPathTreatsGlobMetacharactersAsLiteral(t *testing.T) {
	g := mustGuard(t, scope.Param{
		AllowedDomains:  []string{"example.org"},
		DisallowedPaths: []string{"/feed[1].rss"},
	})
	literal, _ := url.Parse("https://example.org/feed[1].rss")
	notMatched, _ := url.Parse("https://example.org/feed1.rss")
	assert.False(t, g.Allowed(*literal), "* is the only live wildcard; [, ], . must match themselves")
	assert.True(t, g.Allowed(*notMatched))
}
