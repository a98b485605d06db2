package shared

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// Secret-bearing shapes that show up in log lines, journal details, and
// service error payloads. Each pattern keeps its first group so the
// line stays attributable after scrubbing.
var (
	keyAssignment = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key|auth[_-]?token|bearer)\s*[:=]\s*"?([A-Za-z0-9_\-./+=]{16,})"?`)
	bearerHeader  = regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9_\-./+=]{16,})`)
	uuidToken     = regexp.MustCompile(`(?i)(token|secret)\s*[:=]\s*"?([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})"?`)
)

// Redact scrubs credential material out of free text. The proximity-map
// service can echo request headers back inside error bodies, so every
// string headed for a log, the journal, or a bus event passes through
// here first.
func Redact(input string) string {
	if input == "" {
		return input
	}
	out := input
	for _, pat := range []*regexp.Regexp{keyAssignment, bearerHeader, uuidToken} {
		out = pat.ReplaceAllString(out, "${1}"+placeholder)
	}
	return out
}

// RedactEnvValue hides the value of any environment variable whose name
// suggests a credential. Non-secret variables pass through unchanged.
func RedactEnvValue(key, value string) string {
	lower := strings.ToLower(key)
	for _, marker := range []string{"api_key", "apikey", "secret", "token", "password", "credential"} {
		if strings.Contains(lower, marker) {
			return placeholder
		}
	}
	return value
}
