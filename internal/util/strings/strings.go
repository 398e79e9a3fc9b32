// Package strings provides string formatting helpers shared by the panes,
// the job descriptions and the terminal output.
package strings

import "fmt"

// Pluralize returns singular or plural form based on count.
// Example: Pluralize("file", 1) returns "file", Pluralize("file", 2) returns "files"
func Pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

const (
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
	tib = gib * 1024
)

// FormatBytes returns a human-readable byte count with long suffixes,
// e.g. "512B", "1.5KB", "3.2GB".
func FormatBytes(bytes int64) string {
	return formatBytes(bytes, true)
}

// FormatSize returns a compact byte count for size columns,
// e.g. "512", "1.5K", "3.2G".
func FormatSize(bytes int64) string {
	return formatBytes(bytes, false)
}

// FormatSpeed returns a human-readable transfer rate, e.g. "1.5MB/s".
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return FormatBytes(int64(bytesPerSec)) + "/s"
}

func formatBytes(bytes int64, long bool) string {
	if bytes < 0 {
		bytes = 0
	}

	var value float64
	var suffix string
	switch {
	case bytes >= tib:
		value, suffix = float64(bytes)/tib, "T"
	case bytes >= gib:
		value, suffix = float64(bytes)/gib, "G"
	case bytes >= mib:
		value, suffix = float64(bytes)/mib, "M"
	case bytes >= kib:
		value, suffix = float64(bytes)/kib, "K"
	default:
		if long {
			return fmt.Sprintf("%dB", bytes)
		}
		return fmt.Sprintf("%d", bytes)
	}

	if long {
		suffix += "B"
	}
	return fmt.Sprintf("%.1f%s", value, suffix)
}
