package main

import (
	"os"

	"github.com/tramita-io/tramita/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
