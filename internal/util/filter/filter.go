// Package filter provides name filtering for directory listings.
// The same rules drive the pane filter and the ls command.
package filter

import (
	"path/filepath"
	"strings"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*.go", "*.md"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	// Example: []string{"*.tmp", "*~"}
	Exclude []string

	// Search terms (case-insensitive substring match).
	// A name must match ALL search terms to be included.
	Search []string
}

// IsEmpty reports whether the configuration filters nothing.
func (c Config) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0
}

// Matcher returns a predicate for localfs.ListOptions.Match, or nil when the
// configuration filters nothing.
func (c Config) Matcher() func(name string) bool {
	if c.IsEmpty() {
		return nil
	}
	return c.Matches
}

// Matches checks if a file name passes the filter configuration.
func (c Config) Matches(name string) bool {
	// 1. Exclude patterns have the highest priority
	for _, pattern := range c.Exclude {
		if matchName(pattern, name) {
			return false
		}
	}

	// 2. Include patterns
	if len(c.Include) > 0 {
		included := false
		for _, pattern := range c.Include {
			if matchName(pattern, name) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	// 3. Search terms
	if len(c.Search) > 0 {
		lowerName := strings.ToLower(name)
		for _, term := range c.Search {
			if !strings.Contains(lowerName, strings.ToLower(term)) {
				return false
			}
		}
	}

	return true
}

// matchName matches pattern against name and, for names given with a
// directory, against the base name.
func matchName(pattern, name string) bool {
	if matched, _ := filepath.Match(pattern, name); matched {
		return true
	}
	matched, _ := filepath.Match(pattern, filepath.Base(name))
	return matched
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.dat,*.txt" -> []string{"*.dat", "*.txt"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
