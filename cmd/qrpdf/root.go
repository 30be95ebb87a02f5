package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/QuickTools-one/qr-pdf-compress/internal/config"
	"github.com/QuickTools-one/qr-pdf-compress/version"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "qrpdf",
	Short: "Chunked PDF compression with graceful preset degradation",
	Long: `qrpdf compresses large PDF documents under a hard memory ceiling by
splitting them into bounded page-range chunks, compressing each chunk in an
isolated execution context, and merging the results back into one document.

When a job fails under an aggressive preset, it is automatically retried
from scratch with progressively milder presets (max -> balanced -> lossless)
until one succeeds or the original document is returned unchanged.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.qrpdf/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)",
	)

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig creates the config manager from the --config flag.
func loadConfig() (*config.Manager, error) {
	return config.NewManager(cfgFile)
}

// setupLogger configures the default slog logger from config and flags.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}
