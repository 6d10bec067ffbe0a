package main

import (
	"os"

	"github.com/loopwork/pulse/cmd/pulse/commands"
)

var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
