package main

import (
	"os"

	"github.com/questlab/ranksync/cmd/ranksync/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
