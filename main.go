package main

import (
	"os"

	"github.com/amp-memory/amp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
