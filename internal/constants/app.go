package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for config/state/log directory names.
	AppName = "rc"
)

// UI loop timing
const (
	// EventPollInterval - interval of the UI goroutine's poll loop (50ms)
	// Every tick drains job updates, async directory loads and size results.
	EventPollInterval = 50 * time.Millisecond

	// ErrorDisplayDuration - how long a transient error message stays visible
	ErrorDisplayDuration = 3 * time.Second

	// JobVisibilityThreshold - minimum running time before a job is surfaced
	// in the status bar and counted toward quit confirmation (500ms)
	JobVisibilityThreshold = 500 * time.Millisecond

	// RenameForegroundTimeout - the foreground "renaming" state gives up
	// waiting after this long and leaves the job running in the background
	RenameForegroundTimeout = 4 * time.Second

	// PageScrollSize - cursor movement for page up/down
	PageScrollSize = 10
)

// Copy engine
const (
	// CopyBufferSize - size of each read/write chunk in the copy loop (64 KB)
	// Progress and throughput granularity is one chunk.
	CopyBufferSize = 64 * 1024

	// PausePollInterval - sleep between pause flag checks while a job is paused
	PausePollInterval = 100 * time.Millisecond

	// JobUpdateBuffer - capacity of the shared job update channel.
	// The UI drains it every EventPollInterval, so this only fills if the
	// UI goroutine stalls.
	JobUpdateBuffer = 4096

	// SizeResultBuffer - capacity of a streamed size calculation channel
	SizeResultBuffer = 64
)

// Throughput sampling
const (
	// ThroughputHistorySize - number of rate samples kept per job (ring buffer)
	ThroughputHistorySize = 60

	// ThroughputSampleInterval - minimum spacing between rate samples
	ThroughputSampleInterval = 200 * time.Millisecond
)

// Disk space safety margin
const (
	// DiskSpaceSafetyMargin - multiplier applied to the scanned total before
	// comparing with free space at the destination (5% buffer)
	DiskSpaceSafetyMargin = 1.05
)

// Event bus
const (
	// EventBusDefaultBuffer - default per-subscriber buffer
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - upper bound for a subscriber buffer
	EventBusMaxBuffer = 5000
)

// Terminal progress rendering
const (
	// ProgressRefreshRate - refresh rate of the multi-bar job display
	ProgressRefreshRate = 150 * time.Millisecond

	// ProgressBarWidth - width of one job bar
	ProgressBarWidth = 60
)
