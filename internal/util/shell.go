// Package util provides common utility functions used across the codebase.
package util

import "strings"

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// QuoteIfNeeded returns s unchanged when every byte is in the shell-safe set
// (letters, digits and "/._-+:,@%"), otherwise it single-quotes it.
// The empty string is always quoted.
func QuoteIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	for i := 0; i < len(s); i++ {
		if !isShellSafe(s[i]) {
			return ShellQuote(s)
		}
	}
	return s
}

func isShellSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("/._-+:,@%", c) >= 0
}

// ShellQuotePreserveTilde quotes a path for shell execution while preserving tilde expansion.
// For paths starting with ~/, the tilde is kept unquoted and the rest is quoted when needed.
// A bare ~ is returned as is.
func ShellQuotePreserveTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		return "~/" + QuoteIfNeeded(path[2:])
	}
	if path == "~" {
		return "~"
	}
	return QuoteIfNeeded(path)
}
