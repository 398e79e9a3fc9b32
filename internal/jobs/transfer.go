package jobs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/diskspace"
	"github.com/dualpane/rc/internal/localfs"
	"github.com/dualpane/rc/internal/pathutil"
	"github.com/dualpane/rc/internal/util/buffers"
)

type conflictMode int

const (
	conflictAsk conflictMode = iota
	conflictOverwriteAll
	conflictSkipAll
)

// transferWorker copies (and for Move, then removes) one source path into a
// destination directory. The source ends up at destDir/base(source).
type transferWorker struct {
	worker

	typ        JobType
	source     string
	destDir    string
	checkSpace bool

	mode    conflictMode
	skipped int64
}

func (t *transferWorker) run() {
	t.finish(t.execute())
}

func (t *transferWorker) execute() error {
	info, err := os.Lstat(t.source)
	if err != nil {
		return fmt.Errorf("cannot read source: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%s: %w", t.source, ErrSymlinkSource)
	}

	destRoot := filepath.Join(t.destDir, filepath.Base(t.source))
	if pathutil.IsWithin(pathutil.Canonical(destRoot), pathutil.Canonical(t.source)) {
		return fmt.Errorf("cannot %s %s into %s: %w", t.typ, t.source, t.destDir, ErrDestinationInsideSource)
	}

	totalBytes, totalFiles, err := t.scan()
	if err != nil {
		return err
	}

	if t.checkSpace {
		if err := diskspace.CheckAvailableSpace(destRoot, totalBytes, constants.DiskSpaceSafetyMargin); err != nil {
			return err
		}
	}

	t.sendScanComplete(totalBytes, totalFiles, t.skipped)

	if err := t.copyTree(destRoot); err != nil {
		return err
	}

	if t.typ == JobMove {
		if t.skipped > 0 {
			return &PostCopyDeleteError{
				Source: t.source,
				Err:    fmt.Errorf("%d unreadable entries were not copied", t.skipped),
			}
		}
		if err := os.RemoveAll(t.source); err != nil {
			return &PostCopyDeleteError{Source: t.source, Err: err}
		}
	}

	return nil
}

// scan sums the regular files below the source. Symlinks are skipped and
// unreadable entries are counted in t.skipped.
func (t *transferWorker) scan() (totalBytes, totalFiles int64, err error) {
	opts := localfs.WalkOptions{
		SkipSymlinks: true,
		OnError:      t.scanWarning(&t.skipped),
	}
	err = localfs.Walk(t.source, opts, func(e localfs.Entry) error {
		if t.control.Cancelled() {
			return errScanCancelled
		}
		if size, ok := e.SizeOf(); ok {
			totalBytes += size
			totalFiles++
		}
		return nil
	})
	return totalBytes, totalFiles, err
}

func (t *transferWorker) copyTree(destRoot string) error {
	return localfs.Walk(t.source, localfs.WalkOptions{SkipSymlinks: true}, func(e localfs.Entry) error {
		rel, err := filepath.Rel(t.source, e.Path)
		if err != nil {
			return err
		}
		dst := filepath.Join(destRoot, rel)

		if e.IsDir {
			if err := os.MkdirAll(dst, e.Mode.Perm()|0700); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dst, err)
			}
			return nil
		}
		if !e.Mode.IsRegular() {
			return nil
		}
		return t.copyEntry(e, dst)
	})
}

func (t *transferWorker) copyEntry(e localfs.Entry, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		overwrite, err := t.resolveConflict(dst)
		if err != nil {
			return err
		}
		if !overwrite {
			t.filesProcessed++
			t.sendProgress(e.Name)
			return nil
		}
	}

	if err := t.copyFile(e.Path, dst, e.Mode.Perm()); err != nil {
		return err
	}
	t.filesProcessed++
	t.sendProgress(e.Name)
	return nil
}

// resolveConflict asks the UI what to do about an existing destination file
// and blocks until it answers. It reports whether to overwrite.
func (t *transferWorker) resolveConflict(dst string) (bool, error) {
	switch t.mode {
	case conflictOverwriteAll:
		return true, nil
	case conflictSkipAll:
		return false, nil
	}

	t.send(JobUpdate{Kind: UpdateConflictDetected, FilePath: dst})

	res, ok := <-t.conflicts
	if !ok {
		return false, ErrConflictCancelled
	}

	switch res {
	case ResolveOverwrite:
		return true, nil
	case ResolveSkip:
		return false, nil
	case ResolveOverwriteAll:
		t.mode = conflictOverwriteAll
		return true, nil
	case ResolveSkipAll:
		t.mode = conflictSkipAll
		return false, nil
	default:
		return false, ErrConflictCancelled
	}
}

// copyFile copies src to dst in CopyBufferSize chunks, sending a Progress
// update after every chunk. On cancel or error the partial dst is removed.
func (t *transferWorker) copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	abort := func(cause error) error {
		out.Close()
		os.Remove(dst)
		return cause
	}

	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)

	name := filepath.Base(src)
	for {
		if err := t.control.Checkpoint(); err != nil {
			return abort(err)
		}

		n, readErr := in.Read(*buf)
		if n > 0 {
			if _, err := out.Write((*buf)[:n]); err != nil {
				return abort(fmt.Errorf("failed to write %s: %w", dst, err))
			}
			t.processedBytes += int64(n)
			t.sendProgress(name)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return abort(fmt.Errorf("failed to read %s: %w", src, readErr))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
