package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	gostrings "strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dualpane/rc/internal/config"
	"github.com/dualpane/rc/internal/localfs"
	"github.com/dualpane/rc/internal/pane"
	"github.com/dualpane/rc/internal/pathutil"
	"github.com/dualpane/rc/internal/progress"
	"github.com/dualpane/rc/internal/util/filter"
	"github.com/dualpane/rc/internal/util/strings"
)

// newReporter returns a progressbar reporter on a terminal and a silent
// one otherwise.
func newReporter(showBytes bool) progress.Reporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return progress.NewCLIProgress(showBytes)
	}
	return progress.NewNoOpProgress()
}

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var (
		sizes   string
		include string
		exclude string
		search  string
	)

	cmd := &cobra.Command{
		Use:   "ls [DIR]",
		Short: "List a directory the way a pane shows it",
		Long: `List DIR (default: the current directory) with directories first and
names sorted case-insensitively, as a file manager pane does.

Size modes:
  off    no sizes
  files  regular file sizes
  full   file sizes plus recursive directory totals

Filters:
  --include "*.go,*.md"   only names matching a pattern
  --exclude "*.tmp"       drop names matching a pattern
  --search "draft"        only names containing every term`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			cfg := GetConfig()
			mode := pane.ParseSizeMode(cfg.SizeMode)
			if cmd.Flags().Changed("sizes") {
				switch sizes {
				case config.SizeModeOff, config.SizeModeFiles, config.SizeModeFull:
					mode = pane.ParseSizeMode(sizes)
				default:
					return fmt.Errorf("invalid --sizes %q (want off, files or full)", sizes)
				}
			}

			p, err := pane.New(dir,
				pane.WithLogger(GetLogger()),
				pane.WithShowHidden(cfg.ShowHidden),
				pane.WithSizeMode(mode),
				pane.WithFilter(filter.Config{
					Include: filter.ParsePatternList(include),
					Exclude: filter.ParsePatternList(exclude),
					Search:  gostrings.Fields(search),
				}),
			)
			if err != nil {
				return fmt.Errorf("%s: %w", dir, err)
			}
			defer p.Close()

			if err := waitForSizes(GetContext(), p, newReporter(false)); err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), p.Entries(), p.SizeMode())
			return nil
		},
	}

	cmd.Flags().StringVar(&sizes, "sizes", "", "Size mode: off, files or full (overrides size_mode)")
	cmd.Flags().StringVar(&include, "include", "", "Comma-separated glob patterns to include")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated glob patterns to exclude")
	cmd.Flags().StringVar(&search, "search", "", "Space-separated terms every name must contain")

	return cmd
}

// waitForSizes polls the pane's size calculation until it is done.
func waitForSizes(ctx context.Context, p *pane.PaneState, rep progress.Reporter) error {
	if !p.SizesPending() {
		return nil
	}

	rep.Start(-1, "Calculating directory sizes")
	defer rep.Finish()

	ticker := time.NewTicker(GetConfig().PollInterval)
	defer ticker.Stop()

	done := 0
	for p.SizesPending() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done += p.PollSizeResults()
			rep.Update(int64(done))
		}
	}
	return nil
}

func printEntries(w io.Writer, entries []localfs.Entry, mode pane.SizeMode) {
	for _, e := range entries {
		if e.IsParent() {
			continue
		}
		name := e.Name
		switch {
		case e.IsSymlink:
			name += "@"
		case e.IsDir:
			name += "/"
		}
		if mode == pane.SizeOff {
			fmt.Fprintln(w, name)
			continue
		}
		size := "-"
		if n, ok := e.SizeOf(); ok {
			size = strings.FormatSize(n)
		}
		fmt.Fprintf(w, "%10s  %s  %s\n", size, e.ModTime.Format("2006-01-02 15:04"), name)
	}
}

// newDuCmd creates the 'du' command.
func newDuCmd() *cobra.Command {
	var rawBytes bool

	cmd := &cobra.Command{
		Use:   "du DIR...",
		Short: "Show the recursive size of directories",
		Long: `Show the total size of each DIR, counting regular files and not
following symbolic links. Unreadable subtrees are left out of the total.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := make([]string, len(args))
			for i, a := range args {
				dirs[i] = pathutil.Canonical(a)
				if _, err := os.Stat(dirs[i]); err != nil {
					return fmt.Errorf("cannot access %s: %w", a, err)
				}
			}

			ctx := GetContext()
			rep := newReporter(false)
			rep.Start(int64(len(dirs)), "Calculating")

			sizes := make(map[string]int64, len(dirs))
			for res := range pane.CalculateSizes(ctx, "", dirs, GetLogger()) {
				sizes[res.Path] = res.Size
				rep.Update(int64(len(sizes)))
			}
			rep.Finish()
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("interrupted: %w", err)
			}

			format := strings.FormatSize
			if rawBytes {
				format = func(n int64) string { return fmt.Sprintf("%d", n) }
			}

			out := cmd.OutOrStdout()
			var total int64
			missing := 0
			for i, d := range dirs {
				size, ok := sizes[d]
				if !ok {
					missing++
					fmt.Fprintf(out, "%10s  %s\n", "?", args[i])
					continue
				}
				total += size
				fmt.Fprintf(out, "%10s  %s\n", format(size), args[i])
			}
			if len(dirs) > 1 {
				fmt.Fprintf(out, "%10s  total\n", format(total))
			}
			if missing > 0 {
				return fmt.Errorf("%d %s could not be measured", missing, strings.Pluralize("path", int64(missing)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&rawBytes, "bytes", "b", false, "Print sizes in bytes")

	return cmd
}
