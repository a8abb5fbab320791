// Package main is the modaryn command.
package main

import (
	"os"

	"github.com/leapstack-labs/modaryn/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
