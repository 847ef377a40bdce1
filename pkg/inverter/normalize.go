package inverter

import "strings"

// internalFieldPrefix marks vendor payload fields that must not leave the
// backend.
const internalFieldPrefix = "_"

// StripInternal returns v with internal (underscore-prefixed) keys removed
// when v is a map. Any other value is returned unchanged so malformed
// payloads pass through instead of panicking.
func StripInternal(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		if strings.HasPrefix(k, internalFieldPrefix) {
			continue
		}
		out[k] = val
	}
	return out
}
