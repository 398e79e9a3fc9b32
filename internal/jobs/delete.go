package jobs

import (
	"fmt"
	"os"

	"github.com/dualpane/rc/internal/localfs"
)

// deleteWorker removes a list of top-level paths. For each path it removes
// every file first, then the directories deepest first, so each directory is
// empty when it is removed.
type deleteWorker struct {
	worker

	paths   []string
	skipped int64
}

func (d *deleteWorker) run() {
	d.finish(d.execute())
}

func (d *deleteWorker) execute() error {
	totalBytes, totalFiles, err := d.scan()
	if err != nil {
		return err
	}
	d.sendScanComplete(totalBytes, totalFiles, d.skipped)

	for _, path := range d.paths {
		if err := d.deletePath(path); err != nil {
			return err
		}
	}
	return nil
}

func (d *deleteWorker) scan() (totalBytes, totalFiles int64, err error) {
	opts := localfs.WalkOptions{OnError: d.scanWarning(&d.skipped)}
	for _, path := range d.paths {
		err = localfs.Walk(path, opts, func(e localfs.Entry) error {
			if d.control.Cancelled() {
				return errScanCancelled
			}
			if !e.IsDir {
				totalFiles++
				if size, ok := e.SizeOf(); ok {
					totalBytes += size
				}
			}
			return nil
		})
		if err != nil {
			return 0, 0, err
		}
	}
	return totalBytes, totalFiles, nil
}

func (d *deleteWorker) deletePath(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("cannot delete %s: %w", path, err)
	}

	if !info.IsDir() {
		var size int64
		if info.Mode().IsRegular() {
			size = info.Size()
		}
		return d.deleteFile(path, info.Name(), size)
	}

	collected, err := localfs.WalkCollect(path, localfs.WalkOptions{})
	if err != nil {
		return err
	}

	for _, f := range collected.Files {
		size, _ := f.SizeOf()
		if err := d.deleteFile(f.Path, f.Name, size); err != nil {
			return err
		}
	}

	for _, dir := range collected.Directories {
		if err := d.control.Checkpoint(); err != nil {
			return err
		}
		if err := os.Remove(dir.Path); err != nil {
			return fmt.Errorf("failed to remove directory %s: %w", dir.Path, err)
		}
	}
	return nil
}

func (d *deleteWorker) deleteFile(path, name string, size int64) error {
	if err := d.control.Checkpoint(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	d.processedBytes += size
	d.filesProcessed++
	d.sendProgress(name)
	return nil
}
