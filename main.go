// rc runs file manager jobs (copy, move, delete, rename) from the command
// line with live progress, on the same job engine the panes use.
package main

import (
	"os"

	"github.com/dualpane/rc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
