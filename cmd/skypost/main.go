package main

import (
	"os"

	"github.com/thand-io/skypost/cmd/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
