// Command ste-extract extracts element and node stresses from STE files.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/ste-extract/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
