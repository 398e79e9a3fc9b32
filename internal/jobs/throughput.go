package jobs

import (
	"time"

	"github.com/dualpane/rc/internal/constants"
)

// ThroughputTracker samples a job's transfer rate from its cumulative byte
// count. A sample is taken only when at least ThroughputSampleInterval has
// elapsed since the previous one; at most ThroughputHistorySize samples are
// kept, oldest dropped first.
type ThroughputTracker struct {
	samples    []float64 // bytes/sec, oldest first
	lastSample time.Time
	lastBytes  int64
}

// NewThroughputTracker returns a tracker whose first interval starts at start.
func NewThroughputTracker(start time.Time) ThroughputTracker {
	return ThroughputTracker{
		samples:    make([]float64, 0, constants.ThroughputHistorySize),
		lastSample: start,
	}
}

// Update records the cumulative byte count observed at now.
func (t *ThroughputTracker) Update(totalBytes int64, now time.Time) {
	elapsed := now.Sub(t.lastSample)
	if elapsed < constants.ThroughputSampleInterval {
		return
	}

	delta := totalBytes - t.lastBytes
	if delta < 0 {
		delta = 0
	}
	rate := float64(delta) / elapsed.Seconds()

	if len(t.samples) >= constants.ThroughputHistorySize {
		copy(t.samples, t.samples[1:])
		t.samples = t.samples[:len(t.samples)-1]
	}
	t.samples = append(t.samples, rate)

	t.lastSample = now
	t.lastBytes = totalBytes
}

// Current returns the most recent sample, or 0 before the first one.
func (t *ThroughputTracker) Current() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1]
}

// History returns a copy of the samples, oldest first.
func (t *ThroughputTracker) History() []float64 {
	out := make([]float64, len(t.samples))
	copy(out, t.samples)
	return out
}

// Average returns the mean of the retained samples.
func (t *ThroughputTracker) Average() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range t.samples {
		sum += s
	}
	return sum / float64(len(t.samples))
}

// Peak returns the largest retained sample.
func (t *ThroughputTracker) Peak() float64 {
	var peak float64
	for _, s := range t.samples {
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Clone returns an independent copy of t.
func (t *ThroughputTracker) Clone() ThroughputTracker {
	c := *t
	c.samples = t.History()
	return c
}
