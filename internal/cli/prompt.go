package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dualpane/rc/internal/jobs"
)

// promptFileConflict asks what to do when a destination file already exists.
// Invalid input is asked again; end of input cancels the job.
func promptFileConflict(w io.Writer, r *bufio.Reader, path string) (jobs.ConflictResolution, error) {
	for {
		fmt.Fprintf(w, "\nFile '%s' already exists.\n", path)
		fmt.Fprintln(w, "What would you like to do?")
		fmt.Fprintln(w, "  1. Overwrite (once) - Replace this file, prompt for next")
		fmt.Fprintln(w, "  2. Skip (once) - Keep the existing file")
		fmt.Fprintln(w, "  3. Overwrite (do for all) - Replace all existing files in this job")
		fmt.Fprintln(w, "  4. Skip (do for all) - Keep all existing files in this job")
		fmt.Fprintln(w, "  5. Cancel - Stop this job")
		fmt.Fprint(w, "Choose [1-5]: ")

		input, err := r.ReadString('\n')
		if err != nil && input == "" {
			return jobs.ResolveCancel, err
		}

		switch strings.TrimSpace(input) {
		case "1":
			return jobs.ResolveOverwrite, nil
		case "2":
			return jobs.ResolveSkip, nil
		case "3":
			return jobs.ResolveOverwriteAll, nil
		case "4":
			return jobs.ResolveSkipAll, nil
		case "5":
			return jobs.ResolveCancel, nil
		default:
			fmt.Fprintln(w, "Invalid choice, please try again.")
		}
	}
}

// promptYesNo asks question and reports whether the answer was yes.
func promptYesNo(w io.Writer, r *bufio.Reader, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	input, _ := r.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
