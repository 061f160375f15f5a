package main

import (
	"os"

	"github.com/gridflex/gridflex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
