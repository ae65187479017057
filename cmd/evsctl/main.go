package main

import (
	"os"

	"github.com/evs-automation/evsctl/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
