// Package main provides a command-line tool for packing and unpacking SWAR archives.
package main

import (
	"context"
	"os"

	"github.com/fatih/color"

	"github.com/goopsie/swarFileTools/cmd/swartool/command"
)

func main() {
	cmd := command.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
