package main

import (
	"fmt"
	"os"

	"helpdesk/cli"
)

const Version = "v0.1.0"

func main() {
	if err := cli.Execute(Version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
