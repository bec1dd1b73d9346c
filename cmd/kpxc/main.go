package main

import (
	"os"

	"github.com/opd-ai/kpxc/cmd/kpxc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
