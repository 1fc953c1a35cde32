// Command pipeline is the CLI for running and inspecting training runs.
package main

import (
	"fmt"
	"os"

	"pricepipe/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
