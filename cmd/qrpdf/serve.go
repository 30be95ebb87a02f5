package main

import (
	"github.com/spf13/cobra"

	"github.com/QuickTools-one/qr-pdf-compress/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP compression server",
	Long: `Starts an HTTP server exposing compression at POST /api/v1/compress.
The request body is the raw PDF; options are query parameters (preset,
chunkSize, targetDPI, quality, gracefulDegradation, mergeStrategy, title,
author). The response body is the compressed PDF with job statistics in
X-* headers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()
		logger := setupLogger(cfg)
		cfgMgr.WatchConfig()

		svc, err := buildService(cfg, logger)
		if err != nil {
			return err
		}

		host := cfg.Server.Host
		if serveHost != "" {
			host = serveHost
		}
		port := cfg.Server.Port
		if servePort != "" {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:           host,
			Port:           port,
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			Service:        svc,
			Logger:         logger,
		})
		if err != nil {
			return err
		}
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to bind (overrides config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (overrides config)")
}
