package main

import (
	"os"

	"github.com/conneroisu/sfcpreview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
