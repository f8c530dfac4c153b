// Package logging provides zap helpers and log-safety utilities.
//
// The store key travels inside the SQLCipher DSN and in PRAGMA statements,
// so anything derived from the connection string must pass through the
// sanitizers below before it reaches a log line.
package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// _pragma_key=xxx (and the deprecated _key=xxx) inside a SQLCipher DSN.
	dsnKeyPattern = regexp.MustCompile(`(?i)(_pragma_key|_key)=[^;&\s]+`)

	// PRAGMA key = '...' statements that may leak through driver errors.
	pragmaKeyPattern = regexp.MustCompile(`(?i)PRAGMA\s+key\s*=\s*'[^']*'`)

	// Generic password/key parameters in connection strings.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
)

// SanitizeDSN removes the encryption key from a SQLCipher connection string.
// Use this before logging any DSN.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	sanitized := dsnKeyPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	return passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// SanitizeError sanitizes error messages that might carry the store key.
// Driver errors can echo the DSN or the PRAGMA statement that failed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := dsnKeyPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = pragmaKeyPattern.ReplaceAllString(sanitized, "PRAGMA key = '"+RedactedText+"'")
	return passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
