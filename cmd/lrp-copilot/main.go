package main

import (
	"fmt"
	"os"

	"lrp-copilot/cmd/lrp-copilot/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
