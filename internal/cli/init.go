package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/snip/internal/sqlite"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize snip storage",
		Long: "Create the configuration and data directories, write a default config.yaml\n" +
			"and create the snippet database. Running init again keeps existing data.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The config directory and config.yaml are created by setup.
			store, err := a.openStore()
			if err != nil {
				return err
			}
			dataDir := store.DataDir()
			if err := store.Detach(); err != nil {
				return fmt.Errorf("finalize store: %w", err)
			}
			a.logger.Info("store initialized", "data_dir", dataDir)

			configFile := filepath.Join(a.configDir, configFileExt)
			database := filepath.Join(dataDir, sqlite.DBFile)
			return a.printer(cmd).done(map[string]string{
				"config_file": configFile,
				"database":    database,
			}, "snip initialized\n  config:   %s\n  database: %s", configFile, database)
		},
	}
}
