package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Desarso/playground"
	"github.com/Desarso/playground/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the `serve` command.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the playground web server",
		Long: `Run the playground web server: the host page, POST /api/chat, the
per-session playground routes and the live websocket channel.

Examples:
  playground serve
  playground serve --addr :3000 --config playground.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.WithAddr(addr)
			}
			if cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			p, err := playground.New(cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Start(); err != nil {
				return fmt.Errorf("failed to start session reaper: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.New(p).Run(ctx, cfg.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
