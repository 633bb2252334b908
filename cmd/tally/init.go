// Init command for the tally CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the ledger and device configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// PersistentPreRunE already created the config dir and a default
		// config.yaml with a fresh device identity.
		configDir, err := resolveConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		cfg, err := buildConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		store, err := openStore(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		if err := store.SeedDefaultCategories(cfg.ClientID); err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		if err := store.MarkInitialized(); err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		fmt.Println("Ledger initialized")
		fmt.Println("  config:", configDir)
		fmt.Println("  data:  ", cfg.DataDir)
		fmt.Println("  device:", cfg.DeviceName, "("+cfg.ClientID+")")
		if !cfg.Remote() {
			fmt.Println("  remote: not configured (local-only mode)")
		} else {
			fmt.Println("  remote:", cfg.RemoteDir)
		}
		return nil
	},
}
