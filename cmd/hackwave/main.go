// Package main provides the entry point for the hackwave CLI.
package main

import (
	"fmt"
	"os"

	"github.com/hackwave/hackwave/cmd/hackwave/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
