// Sync command for the tally CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one load and save cycle against the remote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "sync:", err)
			os.Exit(exitSysError)
		}

		store, err := openStore(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sync:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		orch, err := buildOrchestrator(store, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sync:", err)
			os.Exit(exitSysError)
		}

		if err := orch.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "sync:", err)
			os.Exit(exitSysError)
		}
		if err := orch.Save(); err != nil {
			fmt.Fprintln(os.Stderr, "sync:", err)
			os.Exit(exitSysError)
		}

		printStatus(orch.Status())
		return nil
	},
}
