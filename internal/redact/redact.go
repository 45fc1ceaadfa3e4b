// Package redact strips credentials and other sensitive fragments from
// strings before they are logged. Model client errors can echo the API key
// in a request URL and driver errors can echo connection strings, so error
// text passes through Error before it reaches a log line.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules are applied in order; specific key formats run before the generic
// key=value rule.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)(postgres(?:ql)?|mysql|redis|db|database)://[^@\s]+@`),
		RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`),
		RedactedCredentialPlaceholder,
	},
	{
		// Google API keys
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)([?&](?:key|api_key|token)=)[^&\s"]+`),
		"${1}" + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]+`),
		"Bearer " + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(api[_-]?key|token|secret|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		RedactedStackPlaceholder,
	},
	{
		// absolute filesystem paths with at least three segments
		regexp.MustCompile(`(?:^|\s)(/[\w.-]+){3,}`),
		" " + RedactedPathPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
