// Package main is the entry point for the diagctl CLI.
package main

import (
	"os"

	"github.com/starhyc/problem-diagnosis-assistant/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
