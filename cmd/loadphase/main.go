package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/wesleyorama2/loadphase/internal/cli"
)

// Main is the entry point for the application
// It's exported to make it testable
func Main() int {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrBenchmarkFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(Main())
}
