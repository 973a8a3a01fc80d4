// Package main is the single-binary entrypoint for bounty.
package main

import "github.com/tutu-network/bounty/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
