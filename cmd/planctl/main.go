package main

import (
	"os"

	"alcyxob/stride-planner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
