// Command replay runs a recorded file of readings through the evaluation
// engine on a simulated clock and prints the resulting alert events.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
