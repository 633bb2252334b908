// Status command for the tally CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tally/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status of this device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "status:", err)
			os.Exit(exitSysError)
		}

		store, err := openStore(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "status:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		orch, err := buildOrchestrator(store, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "status:", err)
			os.Exit(exitSysError)
		}

		st := orch.Status()
		if cfg.Remote() {
			// Refresh the remote lock view for display; failures leave
			// the cached value in place.
			if locks, err := buildCoordinator(cfg); err == nil {
				if lock, err := locks.RefreshStatus(); err == nil {
					st.Lock = lock
				}
			}
		}

		printStatus(st)
		return nil
	},
}

func printStatus(st types.SyncStatus) {
	if flagJSON {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "status:", err)
			os.Exit(exitSysError)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Println("state:          ", st.State)
	fmt.Println("dirty:          ", st.Dirty)
	fmt.Println("local fallback: ", st.HasLocalFallback)
	if st.AuthError {
		fmt.Println("auth error:      remote inaccessible; will retry")
	}
	if st.LastError != "" {
		fmt.Println("last error:     ", st.LastError)
	}
	if st.Lock != nil {
		fmt.Printf("lock:            held by %s (%s), expires %s\n",
			st.Lock.DeviceName, st.Lock.ClientID, st.Lock.ExpiresAt.Format(types.TimeLayout))
	}
	if st.LastSyncTime != nil {
		fmt.Println("last sync:      ", st.LastSyncTime.Format(types.TimeLayout))
	}
}
