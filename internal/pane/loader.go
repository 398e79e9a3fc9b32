package pane

import (
	"time"

	"github.com/dualpane/rc/internal/events"
	"github.com/dualpane/rc/internal/localfs"
	"github.com/dualpane/rc/internal/util/filter"
)

// LoadResult is the outcome of one background directory listing. Path is
// the directory it was computed for; a pane applies it only while it still
// shows that directory.
type LoadResult struct {
	Path    string
	Entries []localfs.Entry
	Err     error
}

type pendingLoad struct {
	path   string
	result <-chan LoadResult
}

// LoadEntriesAsync lists path on a new goroutine and delivers a single
// LoadResult on the returned channel.
func LoadEntriesAsync(path string, showHidden bool, sizeMode SizeMode) <-chan LoadResult {
	return loadAsync(path, listOptions(showHidden, sizeMode, filter.Config{}))
}

func loadAsync(path string, opts localfs.ListOptions) <-chan LoadResult {
	ch := make(chan LoadResult, 1)
	go func() {
		entries, err := localfs.ListDirectory(path, opts)
		ch <- LoadResult{Path: path, Entries: entries, Err: err}
	}()
	return ch
}

// LoadEntriesAsync starts a background reload of the pane directory with the
// pane's own settings. A load already in flight is abandoned.
func (p *PaneState) LoadEntriesAsync() {
	p.load = &pendingLoad{
		path:   p.path,
		result: loadAsync(p.path, p.listOptions()),
	}
}

// PollLoadResult checks, without blocking, whether the background load has
// finished. The result is applied only if the pane still shows the directory
// it was computed for; stale results are dropped silently. applied reports
// whether entries were replaced. err is set when the listing failed.
func (p *PaneState) PollLoadResult() (applied bool, err error) {
	if p.load == nil {
		return false, nil
	}

	var res LoadResult
	select {
	case res = <-p.load.result:
	default:
		return false, nil
	}
	p.load = nil

	if res.Path != p.path {
		p.logger.Debug().
			Str("result_path", res.Path).
			Str("path", p.path).
			Msg("Discarding stale directory listing")
		return false, nil
	}
	if res.Err != nil {
		p.logger.Warn().Str("path", res.Path).Err(res.Err).Msg("Background directory load failed")
		p.publishLoaded(0, res.Err)
		return false, describeOpenError(res.Err)
	}

	p.setEntries(res.Entries)
	p.publishLoaded(len(res.Entries), nil)
	return true, nil
}

// IsLoading reports whether a directory load is in flight.
func (p *PaneState) IsLoading() bool {
	return p.load != nil
}

// IsLoadingAny reports whether a directory load or size calculation is in
// flight.
func (p *PaneState) IsLoadingAny() bool {
	return p.load != nil || p.sizes != nil
}

func (p *PaneState) publishLoaded(entries int, err error) {
	if p.eventBus == nil {
		return
	}
	p.eventBus.Publish(&events.PaneEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventPaneLoaded, Time: time.Now()},
		Path:      p.path,
		Entries:   entries,
		Error:     err,
	})
}
