package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/config"
	"github.com/BetterCallFirewall/Pentrack/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "pentrack",
	Short: "Multi-tenant penetration test tracking dashboard",
	Long: `Pentrack serves the pentest dashboard API: findings, comments, live
notifications over WebSocket and rendered assessment reports.`,
	SilenceUsage: true,
}

var (
	configPath string
	debugMode  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pentrack.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// bootstrap loads the configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if debugMode {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
