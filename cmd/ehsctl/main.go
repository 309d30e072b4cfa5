// Command ehsctl is the operator CLI for an EHS record store.
package main

import (
	"os"

	"ehscore/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.RootCmd(version).Execute(); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
