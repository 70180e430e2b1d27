// Command choreo compiles, runs and inspects choreography definitions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/choreo/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
