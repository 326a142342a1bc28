package main

import (
	"fmt"
	"os"

	"github.com/sarth-shah20/sinkswitch/cmd"
)

func main() {
	// All logic lives in the cmd package. Failures are reported on stdout
	// and end the process with status 1.
	if err := cmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
