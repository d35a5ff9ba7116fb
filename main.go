package main

import (
	"os"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
