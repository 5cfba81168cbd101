// Package main provides the raid command: battle simulation, content
// validation and statistics database migrations.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
