// Package main provides the tally CLI: a local-first personal ledger
// synchronized through an encrypted snapshot on a shared drive folder.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
