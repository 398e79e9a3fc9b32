//go:build !windows

package progress

import "os"

// enableANSIOnWindows is a no-op; other terminals handle ANSI natively.
func enableANSIOnWindows(f *os.File) {}
