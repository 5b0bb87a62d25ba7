package util

import (
	"fmt"
	"strings"
)

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// HumanBytes formats a byte count with a binary unit, e.g. "1.5 KiB".
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FirstLine returns s up to the first newline, trimmed of surrounding space.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// OrDefault returns s trimmed, or def when the trimmed value is empty.
func OrDefault(s, def string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return def
}
