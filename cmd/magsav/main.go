// Package main provides the magsav CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/magsav/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
