// Shared helpers for tally CLI commands.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/tally/internal/drive"
	"github.com/mesh-intelligence/tally/internal/fallback"
	"github.com/mesh-intelligence/tally/internal/sqlite"
	"github.com/mesh-intelligence/tally/internal/syncer"
	"github.com/mesh-intelligence/tally/internal/vault"
	"github.com/mesh-intelligence/tally/pkg/types"
)

// ledgerFileName is the on-device database under the data directory.
const ledgerFileName = "ledger.db"

// buildConfig assembles the sync configuration from the loaded config file
// and the resolved directories.
func buildConfig() (types.Config, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		DataDir:    dataDir,
		RemoteDir:  loadedConfig.GetString(cfgKeyRemoteDir),
		ClientID:   loadedConfig.GetString(cfgKeyClientID),
		DeviceName: loadedConfig.GetString(cfgKeyDeviceName),
		Passphrase: loadedConfig.GetString(cfgKeyPassphrase),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// openStore opens the on-device ledger database, creating the data
// directory on first use.
func openStore(cfg types.Config) (*sqlite.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := sqlite.Open(filepath.Join(cfg.DataDir, ledgerFileName))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return store, nil
}

// buildOrchestrator wires the store, drive client, lock coordinator,
// cipher and fallback into one orchestrator. The remote client is nil
// when no remote folder is configured.
func buildOrchestrator(store *sqlite.Store, cfg types.Config) (*syncer.Orchestrator, error) {
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("no passphrase configured: set passphrase in config.yaml or TALLY_PASSPHRASE")
	}
	cipher, err := vault.NewCipher(cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
	fsys := afero.NewOsFs()
	fb := fallback.NewStore(fsys, cfg.DataDir)

	var client drive.Client
	var locks *drive.Coordinator
	if cfg.Remote() {
		fd := drive.NewFolderDrive(fsys, cfg.RemoteDir)
		client = fd
		locks = drive.NewCoordinator(fd, cfg.ClientID, cfg.DeviceName, logger)
	}

	return syncer.New(store, client, locks, cipher, fb, cfg, logger), nil
}

// buildCoordinator returns the lock coordinator alone, for the lock
// subcommands. Fails when no remote is configured.
func buildCoordinator(cfg types.Config) (*drive.Coordinator, error) {
	if !cfg.Remote() {
		return nil, fmt.Errorf("no remote_dir configured")
	}
	logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
	fd := drive.NewFolderDrive(afero.NewOsFs(), cfg.RemoteDir)
	return drive.NewCoordinator(fd, cfg.ClientID, cfg.DeviceName, logger), nil
}
