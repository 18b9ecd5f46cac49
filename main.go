package main

import (
	"os"

	"github.com/ecomarket/ecobot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
