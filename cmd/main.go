package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lumi/internal/configuration"
)

// config is loaded once by the root command before any subcommand runs.
var config *configuration.AppConfig

var rootCmd = &cobra.Command{
	Use:   "lumi",
	Short: "Luminosity weights for simulated datasets",
	Long: "lumi computes per-dataset luminosity weights from cross-section and event-count tables, " +
		"applies them to event streams and serves them over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		var err error
		config, err = configuration.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("unable to load configuration: %w", err)
		}
		prepareLogger(config.Logger.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "/etc/lumi/config.yaml", "configuration file")
	rootCmd.AddCommand(weighCmd, serveCmd, showCmd)
}

// prepareLogger sets the global slog logger.
// Accepts a string log level ("debug", "info", "warn", "error") and installs
// JSON formatted output on os.Stderr, keeping stdout for command results.
// Unknown levels fall back to Info.
func prepareLogger(level string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// Errors during configuration loading, table loading or component
// initialization terminate the application with exit code 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
