package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/events"
	"github.com/dualpane/rc/internal/logging"
	"github.com/dualpane/rc/internal/pathutil"
)

// workerHandle is the Manager's side of a running worker. It exists exactly
// while the job is non-terminal.
type workerHandle struct {
	control   *Control
	conflicts chan ConflictResolution
}

// Stats holds job counts by state.
type Stats struct {
	Running   int
	Visible   int
	Paused    int
	Completed int
	Failed    int
	Cancelled int
}

// Active returns the number of non-terminal jobs.
func (s Stats) Active() int {
	return s.Running + s.Visible + s.Paused
}

// Total returns the number of tracked jobs.
func (s Stats) Total() int {
	return s.Active() + s.Completed + s.Failed + s.Cancelled
}

// Manager owns the job registry and spawns, cancels and pauses workers.
//
// A Manager is not safe for concurrent use: it is owned by the UI goroutine,
// which calls ProcessUpdates once per tick. Workers only reach it through the
// update channel.
type Manager struct {
	nextID   JobID
	jobs     map[JobID]*Job
	handles  map[JobID]*workerHandle
	updates  chan JobUpdate
	pending  []PendingConflict
	eventBus *events.EventBus
	logger   *logging.Logger
	now      func() time.Time

	checkDiskSpace bool
	wg             sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithEventBus publishes job lifecycle events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(m *Manager) { m.eventBus = bus }
}

// WithLogger sets the logger used by the manager and its workers.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock replaces time.Now for visibility and throughput timing.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithDiskSpaceCheck enables or disables the free-space preflight of transfers.
func WithDiskSpaceCheck(enabled bool) Option {
	return func(m *Manager) { m.checkDiskSpace = enabled }
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		jobs:           make(map[JobID]*Job),
		handles:        make(map[JobID]*workerHandle),
		updates:        make(chan JobUpdate, constants.JobUpdateBuffer),
		logger:         logging.NewNopLogger(),
		now:            time.Now,
		checkDiskSpace: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartJob starts a Copy or Move of source into destDir and returns at once.
func (m *Manager) StartJob(typ JobType, source, destDir string) (JobID, error) {
	if typ != JobCopy && typ != JobMove {
		return 0, fmt.Errorf("start %s job: %w", typ, ErrUnsupportedJobType)
	}

	job := m.register(typ, transferDescription(typ, source, destDir), source, destDir)

	w := &transferWorker{
		worker:     m.newWorker(job.ID),
		typ:        typ,
		source:     source,
		destDir:    destDir,
		checkSpace: m.checkDiskSpace,
	}
	m.spawn(job, w.run)
	return job.ID, nil
}

// StartDeleteJob starts deleting paths, all of which live in parentDir.
func (m *Manager) StartDeleteJob(paths []string, parentDir string) JobID {
	job := m.register(JobDelete, deleteDescription(paths), parentDir, "")
	job.ParentDir = parentDir

	w := &deleteWorker{
		worker: m.newWorker(job.ID),
		paths:  append([]string(nil), paths...),
	}
	m.spawn(job, w.run)
	return job.ID
}

// StartRenameJob starts renaming original to newPath. parentDir is the
// directory to refresh afterwards.
func (m *Manager) StartRenameJob(original, newPath, parentDir string) JobID {
	job := m.register(JobRename, renameDescription(original, newPath), original, newPath)
	job.ParentDir = parentDir

	w := &renameWorker{
		worker:   m.newWorker(job.ID),
		original: original,
		newPath:  newPath,
	}
	m.spawn(job, w.run)
	return job.ID
}

func (m *Manager) register(typ JobType, description, source, destination string) *Job {
	id := m.nextID
	m.nextID++

	now := m.now()
	job := &Job{
		ID:          id,
		Type:        typ,
		Description: description,
		Source:      source,
		Destination: destination,
		Status:      Running(now),
		Throughput:  NewThroughputTracker(now),
	}
	m.jobs[id] = job
	return job
}

func (m *Manager) newWorker(id JobID) worker {
	handle := &workerHandle{
		control:   NewControl(),
		conflicts: make(chan ConflictResolution, 1),
	}
	m.handles[id] = handle

	return worker{
		id:        id,
		updates:   m.updates,
		control:   handle.control,
		conflicts: handle.conflicts,
		logger:    m.logger,
	}
}

func (m *Manager) spawn(job *Job, run func()) {
	m.logger.Info().
		Uint64("job_id", uint64(job.ID)).
		Str("type", string(job.Type)).
		Str("source", job.Source).
		Str("destination", job.Destination).
		Msg("Job started")
	m.publish(events.EventJobStarted, job)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		run()
	}()
}

// CancelJob marks a job Cancelled and tells its worker to stop. The status
// changes immediately, without waiting for the worker. It is a no-op for
// unknown or terminal jobs.
func (m *Manager) CancelJob(id JobID) {
	job, ok := m.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return
	}
	if h, ok := m.handles[id]; ok {
		h.control.Cancel()
	}
	m.setTerminal(job, JobStatus{State: StateCancelled})
	m.logger.Info().Uint64("job_id", uint64(id)).Msg("Job cancelled")
	m.publish(events.EventJobCancelled, job)
}

// CancelAll cancels every non-terminal job.
func (m *Manager) CancelAll() {
	for _, id := range m.activeIDs() {
		m.CancelJob(id)
	}
}

// TogglePauseJob pauses a Running or Visible job, or resumes a Paused one as
// Visible. Other states and Rename jobs are left alone.
func (m *Manager) TogglePauseJob(id JobID) {
	job, ok := m.jobs[id]
	if !ok || job.Type == JobRename {
		return
	}
	h, ok := m.handles[id]
	if !ok {
		return
	}

	switch job.Status.State {
	case StateRunning, StateVisible:
		h.control.SetPaused(true)
		job.Status = JobStatus{State: StatePaused}
		m.publish(events.EventJobPaused, job)
	case StatePaused:
		h.control.SetPaused(false)
		job.Status = JobStatus{State: StateVisible}
		m.publish(events.EventJobResumed, job)
	}
}

// SendConflictResolution forwards a decision to the worker waiting on a
// conflict. It never blocks and does nothing if the worker has exited.
func (m *Manager) SendConflictResolution(id JobID, res ConflictResolution) {
	h, ok := m.handles[id]
	if !ok {
		return
	}
	select {
	case h.conflicts <- res:
	default:
		m.logger.Warn().
			Uint64("job_id", uint64(id)).
			Str("resolution", res.String()).
			Msg("Conflict resolution dropped: previous answer not yet consumed")
	}
}

// ProcessUpdates drains every buffered worker update without blocking and
// applies it. It returns the directories whose listings changed because a
// job completed: destinations (Copy and Move targets) and sources (the
// parent of a moved source, the directory of a delete or rename).
func (m *Manager) ProcessUpdates() (destinations, sources []string) {
	progressed := make(map[JobID]struct{})

	for {
		select {
		case u := <-m.updates:
			d, s := m.apply(u, progressed)
			destinations = append(destinations, d...)
			sources = append(sources, s...)
		default:
			m.publishProgress(progressed)
			return destinations, sources
		}
	}
}

// apply updates the job record for one worker message. Jobs that advanced
// are added to progressed.
func (m *Manager) apply(u JobUpdate, progressed map[JobID]struct{}) (destinations, sources []string) {
	job, ok := m.jobs[u.JobID]
	if !ok {
		// Dismissed while its worker was still reporting
		return nil, nil
	}

	if u.Kind == UpdateCompleted {
		// A job cancelled too late to stop still changed the filesystem
		destinations, sources = refreshPaths(job)
	}
	if job.Status.IsTerminal() {
		return destinations, sources
	}

	switch u.Kind {
	case UpdateScanComplete:
		if job.Progress.Scanned {
			break
		}
		job.Progress.TotalBytes = u.TotalBytes
		job.Progress.TotalFiles = u.TotalFiles
		job.Progress.SkippedEntries = u.SkippedEntries
		job.Progress.Scanned = true
		m.publish(events.EventJobScanComplete, job)

	case UpdateProgress:
		if u.ProcessedBytes >= job.Progress.ProcessedBytes {
			job.Progress.ProcessedBytes = u.ProcessedBytes
		}
		if u.FilesProcessed >= job.Progress.FilesProcessed {
			job.Progress.FilesProcessed = u.FilesProcessed
		}
		job.Progress.CurrentFile = u.CurrentFile
		job.Throughput.Update(job.Progress.ProcessedBytes, m.now())
		if progressed != nil {
			progressed[job.ID] = struct{}{}
		}

	case UpdateCompleted:
		job.Progress.CurrentFile = ""
		m.setTerminal(job, JobStatus{State: StateCompleted})
		m.logger.Info().Uint64("job_id", uint64(job.ID)).Str("type", string(job.Type)).Msg("Job completed")
		m.publish(events.EventJobCompleted, job)

	case UpdateFailed:
		m.setTerminal(job, Failed(u.Err))
		m.logger.Error().Uint64("job_id", uint64(job.ID)).Str("type", string(job.Type)).Str("error", u.Err).Msg("Job failed")
		m.publish(events.EventJobFailed, job)

	case UpdateCancelled:
		m.setTerminal(job, JobStatus{State: StateCancelled})
		m.logger.Info().Uint64("job_id", uint64(job.ID)).Msg("Job cancelled by worker")
		m.publish(events.EventJobCancelled, job)

	case UpdateConflictDetected:
		m.pending = append(m.pending, PendingConflict{JobID: job.ID, FilePath: u.FilePath})
		ev := m.jobEvent(events.EventJobConflict, job)
		ev.FilePath = u.FilePath
		m.publishEvent(ev)
	}

	return destinations, sources
}

func refreshPaths(job *Job) (destinations, sources []string) {
	switch job.Type {
	case JobCopy:
		return []string{job.Destination}, nil
	case JobMove:
		return []string{job.Destination}, []string{pathutil.ParentDir(job.Source)}
	case JobDelete, JobRename:
		return nil, []string{job.ParentDir}
	}
	return nil, nil
}

// setTerminal moves job to a terminal status and drops its worker handle.
// Closing the conflict channel releases a worker blocked on a conflict
// prompt; it then stops as if Cancel had been chosen.
func (m *Manager) setTerminal(job *Job, status JobStatus) {
	job.Status = status
	if h, ok := m.handles[job.ID]; ok {
		close(h.conflicts)
		delete(m.handles, job.ID)
	}
}

// UpdateVisibility promotes Running jobs older than JobVisibilityThreshold
// to Visible.
func (m *Manager) UpdateVisibility() {
	now := m.now()
	for _, job := range m.jobs {
		if job.Status.State == StateRunning && now.Sub(job.Status.StartedAt) >= constants.JobVisibilityThreshold {
			job.Status = JobStatus{State: StateVisible}
		}
	}
}

// NextPendingConflict pops the oldest unanswered conflict whose job is still
// active.
func (m *Manager) NextPendingConflict() (PendingConflict, bool) {
	for len(m.pending) > 0 {
		c := m.pending[0]
		m.pending = m.pending[1:]
		if job, ok := m.jobs[c.JobID]; ok && job.Status.IsActive() {
			return c, true
		}
	}
	return PendingConflict{}, false
}

// ActiveJobCount returns the number of non-terminal jobs.
func (m *Manager) ActiveJobCount() int {
	count := 0
	for _, job := range m.jobs {
		if job.Status.IsActive() {
			count++
		}
	}
	return count
}

// HasVisibleJobs reports whether any job is Visible or Paused, i.e. has been
// running long enough to be shown to the user.
func (m *Manager) HasVisibleJobs() bool {
	for _, job := range m.jobs {
		if job.Status.State == StateVisible || job.Status.State == StatePaused {
			return true
		}
	}
	return false
}

// AllJobs returns copies of every job, newest first.
func (m *Manager) AllJobs() []Job {
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Job returns a copy of the job with the given id.
func (m *Manager) Job(id JobID) (Job, bool) {
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.Snapshot(), true
}

// DismissJob removes a terminal job from the registry. It reports whether
// the job was removed.
func (m *Manager) DismissJob(id JobID) bool {
	job, ok := m.jobs[id]
	if !ok || !job.Status.IsTerminal() {
		return false
	}
	delete(m.jobs, id)
	m.publish(events.EventJobDismissed, job)
	return true
}

// ClearFinished dismisses every terminal job and returns how many were removed.
func (m *Manager) ClearFinished() int {
	removed := 0
	for id, job := range m.jobs {
		if job.Status.IsTerminal() && m.DismissJob(id) {
			removed++
		}
	}
	return removed
}

// Stats returns job counts by state.
func (m *Manager) Stats() Stats {
	var s Stats
	for _, job := range m.jobs {
		switch job.Status.State {
		case StateRunning:
			s.Running++
		case StateVisible:
			s.Visible++
		case StatePaused:
			s.Paused++
		case StateCompleted:
			s.Completed++
		case StateFailed:
			s.Failed++
		case StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// PathsConflictWithActiveJobs reports whether any of paths is the same as,
// inside, or contains the source or destination directory of an active Copy
// or Move job.
// Paths are compared in canonical form, on whole path components.
func (m *Manager) PathsConflictWithActiveJobs(paths []string) bool {
	var busy []string
	for _, job := range m.jobs {
		if job.Status.IsTerminal() || (job.Type != JobCopy && job.Type != JobMove) {
			continue
		}
		busy = append(busy,
			pathutil.Canonical(job.Source),
			pathutil.Canonical(job.Destination),
		)
	}
	if len(busy) == 0 {
		return false
	}

	for _, p := range paths {
		candidate := pathutil.Canonical(p)
		for _, b := range busy {
			if pathutil.Overlaps(candidate, b) {
				return true
			}
		}
	}
	return false
}

// Wait blocks until every worker goroutine has returned. Callers must keep
// calling ProcessUpdates meanwhile if jobs may send more than
// JobUpdateBuffer updates.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) activeIDs() []JobID {
	ids := make([]JobID, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) jobEvent(eventType events.EventType, job *Job) *events.JobEvent {
	ev := events.NewJobEvent(eventType, uint64(job.ID), string(job.Type))
	ev.Description = job.Description
	ev.TotalBytes = job.Progress.TotalBytes
	ev.ProcessedBytes = job.Progress.ProcessedBytes
	ev.TotalFiles = job.Progress.TotalFiles
	ev.FilesProcessed = job.Progress.FilesProcessed
	ev.Speed = job.Throughput.Current()
	if job.Status.State == StateFailed {
		ev.Error = job.Status.Message
	}
	return ev
}

func (m *Manager) publish(eventType events.EventType, job *Job) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Publish(m.jobEvent(eventType, job))
}

func (m *Manager) publishEvent(ev *events.JobEvent) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Publish(ev)
}

// publishProgress sends one progress event per job that advanced during a
// drain, rather than one per chunk.
func (m *Manager) publishProgress(progressed map[JobID]struct{}) {
	for id := range progressed {
		if job, ok := m.jobs[id]; ok {
			m.publish(events.EventJobProgress, job)
		}
	}
}
