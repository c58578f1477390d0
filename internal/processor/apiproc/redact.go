package apiproc

import (
	"bytes"
	"encoding/json"
	"strings"
)

// redact walks a parsed JSON value, replacing any object value whose key
// matches redactedKeys or whose own string value matches a high-entropy
// or card/JWT pattern (spec §4.10 step 3). Reports whether any
// substitution occurred.
func redact(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		changed := false
		out := make(map[string]interface{}, len(v))
		for k, child := range v {
			if redactedKeys[strings.ToLower(k)] {
				out[k] = redactedValue
				changed = true
				continue
			}
			redactedChild, childChanged := redact(child)
			out[k] = redactedChild
			changed = changed || childChanged
		}
		return out, changed
	case []interface{}:
		changed := false
		out := make([]interface{}, len(v))
		for i, child := range v {
			redactedChild, childChanged := redact(child)
			out[i] = redactedChild
			changed = changed || childChanged
		}
		return out, changed
	case string:
		if shouldRedactValue(v) {
			return redactedValue, true
		}
		return v, false
	default:
		return v, false
	}
}

func shouldRedactValue(s string) bool {
	return highEntropyRun.MatchString(s) || creditCardPattern.MatchString(s) || jwtPattern.MatchString(s)
}

// redactJSON parses body, redacts it, and re-marshals indented; encoding/
// json sorts map keys alphabetically, so the output is deterministic
// regardless of map iteration order.
func redactJSON(body []byte) ([]byte, bool, error) {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, err
	}
	redacted, changed := redact(parsed)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(redacted); err != nil {
		return nil, false, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), changed, nil
}

// redactOpaqueString applies the value-pattern checks directly against
// non-JSON bodies (spec §4.10 step 2's opaque fallback), scanning
// whitespace-delimited tokens. In a key=value token only the part after
// the first '=' is checked and replaced.
func redactOpaqueString(body []byte) ([]byte, bool) {
	fields := strings.Fields(string(body))
	changed := false
	for i, f := range fields {
		trimmed := strings.Trim(f, `"',;`)
		if eq := strings.IndexByte(trimmed, '='); eq >= 0 {
			trimmed = trimmed[eq+1:]
		}
		if trimmed != "" && shouldRedactValue(trimmed) {
			fields[i] = strings.Replace(f, trimmed, redactedValue, 1)
			changed = true
		}
	}
	if !changed {
		return body, false
	}
	return []byte(strings.Join(fields, " ")), true
}
