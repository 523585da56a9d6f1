// Command dishm runs Dishwasher Mode conformance test cases.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dishm/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
