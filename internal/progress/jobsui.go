package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/jobs"
	"github.com/dualpane/rc/internal/util/strings"
)

// JobsUI renders one progress bar per job using mpb. When stderr is not a
// terminal it prints a line when a job starts and when it ends instead.
//
// Update must be called from a single goroutine, normally the app tick hook.
type JobsUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	bars       map[jobs.JobID]*jobBar
	now        func() time.Time
}

type jobBar struct {
	bar       *mpb.Bar
	startedAt time.Time
	speed     atomic.Uint64 // float64 bits of the current throughput
	paused    atomic.Bool
	done      bool
}

// NewJobsUI creates a job display on stderr.
func NewJobsUI() *JobsUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSIOnWindows(os.Stderr)
	}
	return newJobsUI(os.Stderr, isTerminal)
}

func newJobsUI(out io.Writer, isTerminal bool) *JobsUI {
	u := &JobsUI{
		out:        out,
		isTerminal: isTerminal,
		bars:       make(map[jobs.JobID]*jobBar),
		now:        time.Now,
	}
	if isTerminal {
		u.progress = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(constants.ProgressBarWidth),
			mpb.WithAutoRefresh(),
		)
	}
	return u
}

// Update brings the display in line with snapshot, a list of job copies
// from jobs.Manager.AllJobs. Jobs seen for the first time get a bar; jobs
// in a terminal state get their final line.
func (u *JobsUI) Update(snapshot []jobs.Job) {
	for i := range snapshot {
		j := &snapshot[i]
		jb, ok := u.bars[j.ID]
		if !ok {
			jb = u.addBar(j)
		}
		if jb.done {
			continue
		}

		jb.speed.Store(math.Float64bits(j.Throughput.Current()))
		jb.paused.Store(j.Status.State == jobs.StatePaused)
		if jb.bar != nil && j.Progress.Scanned {
			total, current := barCounts(j.Progress)
			jb.bar.SetTotal(total, false)
			jb.bar.SetCurrent(current)
		}

		if j.Status.IsTerminal() {
			u.finish(jb, j)
		}
	}
}

// barCounts returns bar units for p: bytes, or files for jobs with no data.
func barCounts(p jobs.JobProgress) (total, current int64) {
	if p.TotalBytes > 0 {
		return p.TotalBytes, min(p.ProcessedBytes, p.TotalBytes)
	}
	total = max(p.TotalFiles, 1)
	return total, min(p.FilesProcessed, total)
}

func (u *JobsUI) addBar(j *jobs.Job) *jobBar {
	jb := &jobBar{startedAt: u.now()}
	u.bars[j.ID] = jb

	if !u.isTerminal {
		if !j.Status.IsTerminal() {
			fmt.Fprintf(u.out, "Started [%d]: %s\n", j.ID, j.Description)
		}
		return jb
	}

	description := j.Description
	jb.bar = u.progress.New(0,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				if jb.paused.Load() {
					return description + " (paused)"
				}
				return description
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.Any(func(decor.Statistics) string {
				return strings.FormatSpeed(math.Float64frombits(jb.speed.Load()))
			}, decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return jb
}

func (u *JobsUI) finish(jb *jobBar, j *jobs.Job) {
	jb.done = true
	elapsed := u.now().Sub(jb.startedAt).Round(time.Second)

	var msg string
	switch j.Status.State {
	case jobs.StateCompleted:
		if jb.bar != nil {
			total, _ := barCounts(j.Progress)
			jb.bar.SetCurrent(total)
			jb.bar.SetTotal(total, true)
		}
		msg = fmt.Sprintf("✓ %s (%s, %d %s, %s, %s avg)\n",
			j.Description,
			strings.FormatBytes(j.Progress.ProcessedBytes),
			j.Progress.FilesProcessed, strings.Pluralize("file", j.Progress.FilesProcessed),
			elapsed,
			strings.FormatSpeed(j.Throughput.Average()))
	case jobs.StateFailed:
		if jb.bar != nil {
			jb.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %s\n", j.Description, j.Status.Message)
	default:
		if jb.bar != nil {
			jb.bar.Abort(true)
		}
		msg = fmt.Sprintf("- %s: cancelled\n", j.Description)
	}

	_, _ = io.WriteString(u.Writer(), msg)
}

// Writer returns an io.Writer that prints above the bars.
func (u *JobsUI) Writer() io.Writer {
	if u.progress != nil {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are being drawn.
func (u *JobsUI) IsTerminal() bool {
	return u.isTerminal
}

// Close aborts any bar whose job never reached a terminal state and waits
// for the display to finish rendering.
func (u *JobsUI) Close() {
	for _, jb := range u.bars {
		if !jb.done && jb.bar != nil {
			jb.bar.Abort(true)
		}
		jb.done = true
	}
	if u.progress != nil {
		u.progress.Wait()
	}
}
