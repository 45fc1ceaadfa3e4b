// Package main is the recipe-queue command. With no subcommand it serves
// the HTTP API; "generate" runs one request inline and "migrate" manages
// the archive schema.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
