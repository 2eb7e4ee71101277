// Package main provides the entry point for the peregrine CLI.
package main

import (
	"os"

	"github.com/peregrinehq/peregrine/cmd/peregrine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
