// Command flowsync synchronizes Langflow flows and projects with a Git
// hosting repository.
package main

import (
	"fmt"
	"os"

	"github.com/dshills/flowsync/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
