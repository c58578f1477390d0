package apiproc

import "regexp"

// redactedKeys are object keys (case-insensitive) whose values are
// always replaced with "<redacted>" regardless of shape (spec §4.10
// step 3).
var redactedKeys = map[string]bool{
	"token":         true,
	"secret":        true,
	"password":      true,
	"authorization": true,
	"api_key":       true,
	"email":         true,
	"phone":         true,
	"ssn":           true,
	"session":       true,
}

// highEntropyRun matches bare alphanumeric runs of 24+ characters, the
// "looks like a secret even under an innocuous key" fallback.
var highEntropyRun = regexp.MustCompile(`^[A-Za-z0-9+/_-]{24,}$`)

// creditCardPattern matches 13-19 digits, each optionally followed by a
// single space or hyphen; no particular grouping is required.
var creditCardPattern = regexp.MustCompile(`^(?:\d[ -]?){13,19}$`)

// jwtPattern matches the three dot-separated base64url segments of a JWT.
var jwtPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

const redactedValue = "<redacted>"

// Param configures the API Processor.
type Param struct {
	FamilyMaxSamples int
}

func (p Param) withDefaults() Param {
	if p.FamilyMaxSamples == 0 {
		p.FamilyMaxSamples = 3
	}
	return p
}
