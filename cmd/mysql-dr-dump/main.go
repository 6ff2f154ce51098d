// Package main is the command-line entry point for mysql-dr-dump.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
