package jobs

import (
	"sync/atomic"
	"time"

	"github.com/dualpane/rc/internal/constants"
)

// Control carries the cancel and pause flags shared between the Manager and
// one worker. The flags are advisory: a worker observes them between chunks,
// so reaction is delayed by at most one chunk or one pause tick.
type Control struct {
	cancelled atomic.Bool
	paused    atomic.Bool

	pollInterval time.Duration
}

// NewControl returns a Control with both flags cleared.
func NewControl() *Control {
	return &Control{pollInterval: constants.PausePollInterval}
}

// Cancel sets the cancel flag. It is idempotent.
func (c *Control) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (c *Control) Cancelled() bool { return c.cancelled.Load() }

// SetPaused sets or clears the pause flag.
func (c *Control) SetPaused(paused bool) { c.paused.Store(paused) }

// Paused reports whether the pause flag is set.
func (c *Control) Paused() bool { return c.paused.Load() }

// WaitWhilePaused sleeps in short ticks while the pause flag is set,
// re-checking cancel on every wake. It returns ErrInterrupted once cancelled.
func (c *Control) WaitWhilePaused() error {
	for c.paused.Load() {
		if c.cancelled.Load() {
			return ErrInterrupted
		}
		time.Sleep(c.pollInterval)
	}
	if c.cancelled.Load() {
		return ErrInterrupted
	}
	return nil
}

// Checkpoint is called by workers between units of work: it returns
// ErrInterrupted if cancelled and blocks while paused.
func (c *Control) Checkpoint() error {
	if c.cancelled.Load() {
		return ErrInterrupted
	}
	return c.WaitWhilePaused()
}
