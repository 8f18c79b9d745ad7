// Package main is the single-binary entrypoint for the irrigation hub
// daemon.
package main

import "github.com/fieldwatch/irrigation-hub/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
