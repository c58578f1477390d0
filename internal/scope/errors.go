package scope

import "fmt"

// ScopeError reports a malformed disallowed-path pattern at Guard
// construction time (config validation, not a per-URL runtime failure).
type ScopeError struct {
	Message string
	Pattern string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("scope: invalid disallowed_paths pattern %q: %s", e.Pattern, e.Message)
}
