// Package cli wires configuration, logging and the session core into the
// livetranslate command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/room4-2/livetranslate/config"
	"github.com/room4-2/livetranslate/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "livetranslate",
	Short:        "Realtime speech translation over a streaming model session",
	SilenceUsage: true,
	Long: `livetranslate holds a streaming session with a native-audio model that
interprets between Thai and English.

Run "serve" to expose the session to a browser UI over a local WebSocket
bridge, or "stream" to translate a PCM file from the command line.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (yaml, json or toml)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvironment reads configuration and builds the process logger from it.
func loadEnvironment() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
