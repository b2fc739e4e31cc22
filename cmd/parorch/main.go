// Command parorch schedules a command list in optimistic rounds until no
// forward dependency remains.
package main

import (
	"os"

	"github.com/roach88/parorch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
