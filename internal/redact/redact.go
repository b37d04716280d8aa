// Package redact scrubs sensitive material from strings before they are
// logged or persisted. Provider errors routinely echo request details back,
// so anything derived from them must pass through here before it reaches a
// log line, an audit row or a failure reason stored on a note.
package redact

import "regexp"

// Placeholders substituted for matched material.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
)

// A rule rewrites every match of re with repl. repl may reference capture
// groups, which is how the query parameter rule keeps the parameter name
// while dropping its value.
type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules run in order. Credential and key rules come before path and host
// rules so a secret embedded in a URL is replaced as a secret rather than
// swallowed into a path match, and the query parameter rule precedes the
// generic key rule so the parameter name survives.
var rules = []rule{
	// user:password@ in connection URLs
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|db|database|connection)://[^@\s]+@`), RedactedCredentialPlaceholder},
	// password=..., pwd: ...
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	// ?key=... and &token=... in request URLs
	{regexp.MustCompile(`(?i)([?&](?:key|api_key|token|access_token)=)[^&\s]+`), "${1}" + RedactedKeyPlaceholder},
	// api_key=..., token: ..., secret ...
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	// OpenAI sk- keys
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`), RedactedKeyPlaceholder},
	// Google AIza keys
	{regexp.MustCompile(`\bAIza[A-Za-z0-9_-]{20,}\b`), RedactedKeyPlaceholder},
	// Authorization headers
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	// Unix paths with at least two segments
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	// Windows drive paths
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder},
	// Email addresses
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), RedactedEmailPlaceholder},
	// host:port pairs left behind after credential redaction
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}:\d{1,5}\b`), RedactedHostPlaceholder},
}

// String returns input with every redaction rule applied, in order.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		input = r.re.ReplaceAllString(input, r.repl)
	}
	return input
}

// Error redacts err's message. A nil error yields the empty string, so
// callers can pass an error through without checking it first.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
