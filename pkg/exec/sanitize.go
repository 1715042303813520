package exec

import "strings"

// Metacharacters are the characters that end a sanitized command.
const Metacharacters = ";&|`$()"

// Sanitize keeps the part of raw before the first metacharacter and trims
// surrounding whitespace. It truncates rather than escapes, so redirection,
// globbing and quoting pass through unchanged. An empty result means there is
// nothing to run.
func Sanitize(raw string) string {
	if i := strings.IndexAny(raw, Metacharacters); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}
