package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mathis-dumont/horse-racing-prediction/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pmuetl",
	Short: "Daily trot racing data pipeline",
	Long:  "Fetches daily race programs, runners, career histories, and betting returns from the turfinfo API and loads them into Postgres, idempotently, over arbitrary date ranges.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
