package main

import (
	"os"

	"fitquiz-assignment-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
