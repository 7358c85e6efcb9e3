// Package main is the entry point for the siemtap packet decode engine.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/siemtap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
