package main

import (
	"fmt"
	"time"

	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/spf13/cobra"
)

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "删除超过保留期的文章",
	RunE: func(cmd *cobra.Command, args []string) error {
		retention := cleanupOlderThan
		if retention <= 0 {
			retention = appCfg.Database.Retention
		}
		if retention <= 0 {
			return fmt.Errorf("retention must be positive, got %s", retention)
		}

		// 只需要存储层
		store, err := storage.NewStore(appCfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		cutoff := time.Now().Add(-retention)
		n, err := store.DeleteOlderThan(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d articles published before %s\n", n, cutoff.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "retention window (default: database.retention)")
}
