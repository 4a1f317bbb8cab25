package main

import (
	"os"

	"github.com/garytangtang2-bit/hkfirstclick/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
