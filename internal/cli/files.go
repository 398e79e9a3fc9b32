package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dualpane/rc/internal/app"
	"github.com/dualpane/rc/internal/jobs"
	"github.com/dualpane/rc/internal/pathutil"
	"github.com/dualpane/rc/internal/util/strings"
)

// newTransferCmd creates the cp and mv commands.
func newTransferCmd(use, short string, typ jobs.JobType) *cobra.Command {
	var overwrite, skipExisting bool

	symlinks := "Symbolic links are skipped, not copied, and a source that is itself a\nsymbolic link is refused."
	if typ == jobs.JobMove {
		symlinks = "Symbolic links inside a source are skipped, not copied, and are removed\nwith the source once the move completes. A source that is itself a\nsymbolic link is refused."
	}

	cmd := &cobra.Command{
		Use:   use + " SRC... DEST",
		Short: short,
		Long: short + `.

Each source becomes its own background job. DEST must be an existing
directory; sources keep their names inside it. Directories are copied
recursively. ` + symlinks + `

Examples:
  rc ` + use + ` report.pdf ~/backup
  rc ` + use + ` src docs README.md /mnt/usb --skip-existing`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := conflictPolicyFromFlags(overwrite, skipExisting)
			if err != nil {
				return err
			}

			dest := args[len(args)-1]
			destDir, err := pathutil.ResolveAbsolutePath(dest)
			if err != nil {
				return fmt.Errorf("cannot resolve %s: %w", dest, err)
			}
			if info, err := os.Stat(destDir); err != nil || !info.IsDir() {
				return fmt.Errorf("destination %s is not a directory", dest)
			}

			groups, err := groupByParent(args[:len(args)-1])
			if err != nil {
				return err
			}

			s, err := newSession(groups[0].dir, destDir, policy)
			if err != nil {
				return err
			}

			var startErrs []error
			started := 0
			for _, g := range groups {
				if err := s.selectGroup(g); err != nil {
					startErrs = append(startErrs, err)
					continue
				}
				ids, err := s.app.Transfer(typ)
				started += len(ids)
				if err != nil {
					GetLogger().Error().Str("dir", g.dir).Err(err).Msg("Cannot start job")
					startErrs = append(startErrs, err)
				}
			}

			if started == 0 {
				s.close()
				return errors.Join(startErrs...)
			}
			runErr := s.run(GetContext())
			return errors.Join(append(startErrs, runErr)...)
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files without asking")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Keep existing files without asking")

	return cmd
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Delete files and directories",
		Long: `Delete files and directories recursively as background jobs.

One job is started per parent directory. Without --force the deletion is
confirmed on stdin; when stdin is not a terminal --force is required.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := groupByParent(args)
			if err != nil {
				return err
			}

			s, err := newSession(groups[0].dir, groups[0].dir, conflictPrompt)
			if err != nil {
				return err
			}

			var plans []app.DeletePlan
			total := 0
			for _, g := range groups {
				if err := s.selectGroup(g); err != nil {
					s.close()
					return err
				}
				plan, ok := s.app.PlanDelete()
				if !ok {
					continue
				}
				plans = append(plans, plan)
				total += len(plan.Entries)
			}

			if !force {
				if !s.interactive {
					s.close()
					return errors.New("refusing to delete without --force when stdin is not a terminal")
				}
				for _, p := range plans {
					if p.ConflictsWithJobs {
						fmt.Fprintf(s.ui.Writer(), "Warning: %s is in use by a running transfer\n", p.ParentDir)
					}
				}
				if !promptYesNo(s.ui.Writer(), s.stdin, fmt.Sprintf("Delete %d %s?", total, strings.Pluralize("item", int64(total)))) {
					s.close()
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
					return nil
				}
			}

			for _, p := range plans {
				s.app.ConfirmDelete(p)
			}
			return s.run(GetContext())
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	return cmd
}

// newRenameCmd creates the 'rename' command.
func newRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename PATH NEWNAME",
		Short: "Rename a file or directory in place",
		Long: `Rename PATH to NEWNAME within the same directory.

NEWNAME is a plain name, not a path. An existing entry with that name is
never replaced.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := groupByParent(args[:1])
			if err != nil {
				return err
			}
			g := groups[0]

			s, err := newSession(g.dir, g.dir, conflictPrompt)
			if err != nil {
				return err
			}
			if !s.app.ActivePane().MoveTo(g.names[0]) {
				s.close()
				return fmt.Errorf("%s is not listed in %s", g.names[0], g.dir)
			}

			_, started, err := s.app.Rename(args[1])
			if err != nil || !started {
				s.close()
				return err
			}
			if err := s.run(GetContext()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n",
				filepath.Join(g.dir, g.names[0]), filepath.Join(g.dir, args[1]))
			return nil
		},
	}

	return cmd
}
