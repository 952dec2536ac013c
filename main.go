package main

import (
	"os"

	"github.com/trc-project/trc/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
