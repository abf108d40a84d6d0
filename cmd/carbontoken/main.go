// Package main provides the CLI entry point for carbontoken.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/carbontoken/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		os.Exit(cli.ExitSuccess)
	}

	// Commands report their own errors; cobra's flag and argument errors
	// are printed here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}
