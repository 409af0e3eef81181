package main

import (
	"os"

	"github.com/unfoldindia/unfold/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
