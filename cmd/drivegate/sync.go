package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dostvardhan/drivegate/config"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the metadata index against the storage provider",
	Long: `Sync lists the objects in the configured container and appends an
index record for every object the index does not know about. This is the
recovery path for uploads whose index append failed.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	service, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	added, err := service.Sync(ctx)
	if err != nil {
		return err
	}

	slog.Info("index sync complete", "records_added", added)
	return nil
}
