// Command varsys compiles, runs, traces and replays reactive variable
// graphs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/varsys/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
