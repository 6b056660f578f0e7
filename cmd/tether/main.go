package main

import (
	"os"

	"github.com/MEKXH/tether/cmd/tether/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
