package main

import (
	"os"

	"github.com/wayli-app/htmlbld/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
