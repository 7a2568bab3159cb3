package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"rescue/internal/platform/config"
	"rescue/internal/platform/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "rescue",
	Short:        "Intervention dispatch service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Logging), nil
}
