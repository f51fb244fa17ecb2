// Command galenium runs UI verification scenarios and manages their
// recorded baselines.
package main

import (
	"fmt"
	"os"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
