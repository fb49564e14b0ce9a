package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dostvardhan/drivegate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "drivegate",
	Short:   "Authenticated media gateway in front of an object-storage provider",
	Long: `Drivegate sits between browser clients and a third-party storage
provider: it verifies bearer identity tokens against the provider's
published key set, refreshes a delegated storage credential, and streams
uploads and downloads without buffering whole files.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var configFiles []string
		if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
			configFiles = append(configFiles, configFile)
		}

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "index backend: sqlite, postgres, file (default: sqlite, env: DRIVEGATE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "index connection string or file path (default: drivegate.db, env: DRIVEGATE_DATABASE_DSN)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
