// Package diskspace checks available disk space before a transfer starts
// writing, so a copy that cannot fit fails up front instead of half way.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dualpane/rc/internal/util/strings"
)

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, strings.FormatBytes(e.RequiredBytes), strings.FormatBytes(e.AvailableBytes))
}

// CheckAvailableSpace checks if there is sufficient disk space for writing
// requiredBytes at targetPath. targetPath does not need to exist; the nearest
// existing ancestor decides which filesystem is checked.
//
// safetyMargin multiplies requiredBytes (e.g. 1.05 for a 5% buffer).
//
// If the filesystem cannot be queried the check passes and the copy is left
// to fail naturally.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	available, ok := availableBytes(existingAncestor(targetPath))
	if !ok {
		return nil
	}

	requiredWithMargin := int64(float64(requiredBytes) * safetyMargin)
	if available < requiredWithMargin {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  requiredWithMargin,
			AvailableBytes: available,
		}
	}

	return nil
}

// GetAvailableSpace returns the available space in bytes for the filesystem
// containing the given path. Returns 0 if unable to determine.
func GetAvailableSpace(path string) int64 {
	available, ok := availableBytes(existingAncestor(path))
	if !ok {
		return 0
	}
	return available
}

// IsInsufficientSpaceError checks if err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}

func existingAncestor(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
