package main

import (
	"os"

	"github.com/Desarso/playground"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logFormat  string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "playground",
		Short:        "Generate and preview React components from plain-language requests",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewRenderCmd(),
		NewArchiveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies command-line overrides on top of LoadConfig.
func loadConfig() (*playground.Config, *logrus.Logger, error) {
	cfg, err := playground.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, playground.NewLogger(cfg), nil
}
