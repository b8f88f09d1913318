package main

import (
	"os"

	"github.com/rustyeddy/stockdata/cmd/stockdata/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
