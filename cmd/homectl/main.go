// Package main is the single-binary entrypoint for homectl.
package main

import "nrgchamp/homectl/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
