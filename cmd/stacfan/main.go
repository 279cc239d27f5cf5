// Package main provides the entry point for the stacfan CLI.
package main

import (
	"os"

	"github.com/geoplex/stacfan/cmd/stacfan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
