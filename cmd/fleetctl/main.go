package main

import (
	"fmt"
	"os"

	"fleet-analytics/internal/cli"
)

var version = "1.0.0"

func main() {
	app := cli.NewCLIApp(version)

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
