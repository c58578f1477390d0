package scope

/*
Scope Guard (spec §4.2)

Input: a canonical URL plus configuration (allowed_domains,
disallowed_paths with `*` wildcards, exclude_extensions). Output: a
boolean admission decision.

Rules, evaluated in order:
 1. scheme ∈ {http, https}
 2. host equals or is a subdomain of some allowed domain
 3. path extension (lowercased) not in the excluded set
 4. no disallowed-path wildcard matches the path

A rejected URL is never fetched. The Guard is stateless and pure: given
the same canonical URL and the same Param, it always returns the same
verdict.
*/

// Param bundles the scope rules a Guard evaluates against. It is built
// once from config.Config and reused for every URL in a run.
type Param struct {
	AllowedDomains    []string
	DisallowedPaths   []string
	ExcludeExtensions []string
}
