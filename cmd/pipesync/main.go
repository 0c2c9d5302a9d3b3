// Command pipesync syncs and verifies pipe configuration against a
// remote platform node.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pipesync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
