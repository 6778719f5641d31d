// Command retain inspects retain.yaml and runs the reference tree scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/retain/cmd/retain/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
