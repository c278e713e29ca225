package main

import (
	"fmt"
	"os"

	"ccapprover/cmd/cc-approver/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
