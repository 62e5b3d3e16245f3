// Package format renders values for CLI progress and summaries.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Elapsed formats a run duration for human display.
// Examples: "850ms", "45s", "2m05s", "1h30m".
func Elapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	case d < time.Minute:
		return fmt.Sprintf("%ds", d/time.Second)
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", d/time.Minute, (d%time.Minute)/time.Second)
	}
	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	if minutes > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}

// Size formats a size in bytes for human display.
// Uses MB for sizes >= 1MB, KB for sizes >= 1KB, bytes otherwise.
func Size(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	if bytes >= mb {
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	}
	if bytes >= kb {
		return fmt.Sprintf("%d KB", bytes/kb)
	}
	return fmt.Sprintf("%d bytes", bytes)
}

// Count renders n with the singular or plural noun: "1 question", "3 questions".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// Truncate shortens s to at most max runes on a single line, appending "..."
// when cut.
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return strings.TrimSpace(string([]rune(s)[:max-3])) + "..."
}
