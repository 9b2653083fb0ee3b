// Package main provides the ani CLI.
package main

import (
	"os"

	"github.com/born-ml/ani/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
