// Command financectl manages a finance tracker session from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/ledgerlane/sessionkit/cmd/financectl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
