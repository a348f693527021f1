// Command gearsage is the entry point for the GearSage gaming-gear
// recommendation assistant. It provides a CLI interface (via Cobra) for
// catalog ingestion and one-shot questions, plus an HTTP server for
// production deployments.
package main

import (
	"fmt"
	"os"

	"github.com/gearsage/gearsage-go/cmd/gearsage/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
