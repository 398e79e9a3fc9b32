package pane

import (
	"context"

	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/localfs"
	"github.com/dualpane/rc/internal/logging"
)

// SizeResult is the recursive size of one subdirectory. Dir is the pane
// directory the calculation was started for.
type SizeResult struct {
	Dir  string
	Path string
	Size int64
}

type sizeCalculation struct {
	results <-chan SizeResult
	cancel  context.CancelFunc
}

// CalculateSizes walks each of dirs in order on a new goroutine and sends one
// SizeResult per directory as soon as its total is known. The channel is
// closed when every directory is done or ctx is cancelled. Directories that
// cannot be walked are logged and left out.
func CalculateSizes(ctx context.Context, dir string, dirs []string, logger *logging.Logger) <-chan SizeResult {
	ch := make(chan SizeResult, constants.SizeResultBuffer)
	go func() {
		defer close(ch)
		for _, d := range dirs {
			size, err := localfs.DirSize(ctx, d)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn().Str("path", d).Err(err).Msg("Size calculation failed")
				continue
			}
			select {
			case ch <- SizeResult{Dir: dir, Path: d, Size: size}:
			case <-ctx.Done():
				// Receiver moved on
				return
			}
		}
	}()
	return ch
}

// StartSizeCalculation starts computing the recursive size of every
// subdirectory in the listing. It only runs in SizeFull mode; any previous
// calculation is abandoned.
func (p *PaneState) StartSizeCalculation() {
	p.cancelSizeCalculation()
	if p.sizeMode != SizeFull {
		return
	}

	var dirs []string
	for _, e := range p.entries {
		if e.IsDir && !e.IsParent() && !e.IsSymlink {
			dirs = append(dirs, e.Path)
		}
	}
	if len(dirs) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.sizes = &sizeCalculation{
		results: CalculateSizes(ctx, p.path, dirs, p.logger),
		cancel:  cancel,
	}
}

// PollSizeResults applies every size result that is ready, matching entries
// by path. Results for another directory are dropped. It returns the number
// of entries updated.
func (p *PaneState) PollSizeResults() int {
	if p.sizes == nil {
		return 0
	}

	updated := 0
	for {
		select {
		case res, ok := <-p.sizes.results:
			if !ok {
				p.cancelSizeCalculation()
				return updated
			}
			if res.Dir != p.path {
				continue
			}
			for i := range p.entries {
				if p.entries[i].Path == res.Path {
					p.entries[i] = p.entries[i].WithSize(res.Size)
					updated++
					break
				}
			}
		default:
			return updated
		}
	}
}

// SizesPending reports whether a size calculation is still delivering
// results.
func (p *PaneState) SizesPending() bool {
	return p.sizes != nil
}

// Close abandons any size calculation in progress so its goroutine exits.
// Call it when the pane is discarded; the pane itself stays usable.
func (p *PaneState) Close() {
	p.cancelSizeCalculation()
}

// CycleSizeMode switches Off, Files, Full, Off and reloads the listing.
func (p *PaneState) CycleSizeMode() error {
	p.sizeMode = p.sizeMode.Next()
	return p.LoadEntries()
}

func (p *PaneState) cancelSizeCalculation() {
	if p.sizes == nil {
		return
	}
	p.sizes.cancel()
	p.sizes = nil
}
