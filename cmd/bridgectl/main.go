// Command bridgectl is the operator CLI for the bridge: migrations, admin tokens and
// identity lookups.
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
