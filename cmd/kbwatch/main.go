// Command kbwatch joins a board room headlessly and prints what a browser
// participant would do with each remote event.
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
