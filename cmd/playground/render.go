package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Desarso/playground/sandbox"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRenderCmd creates the `render` command.
func NewRenderCmd() *cobra.Command {
	var (
		htmlOut    string
		entryPoint string
		resources  []string
	)

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a component source file in the sandbox",
		Long: `Compile and render a JSX component file without calling a backend.
Use - to read the source from stdin.

Examples:
  playground render card.jsx
  playground render --resource https://cdn.jsdelivr.net/npm/chart.js --html chart.html chart.jsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if entryPoint != "" {
				cfg.WithEntryPoint(entryPoint)
			}

			source, err := readSource(args[0])
			if err != nil {
				return err
			}

			renderer := sandbox.NewRenderer().
				WithEntryPoint(cfg.EntryPoint).
				WithTimeout(cfg.RenderTimeout)
			state := sandbox.NewRuntime(renderer, logger).Load(cmd.Context(), source, resources)

			for _, line := range state.Console {
				fmt.Println(color.HiBlackString("console: %s", line))
			}
			if state.RenderError != "" {
				fmt.Printf("%s %s\n", color.RedString("✗"), state.RenderError)
			} else {
				fmt.Println(state.Markup)
			}

			if htmlOut != "" {
				if err := writePreview(htmlOut, state, cfg.EntryPoint); err != nil {
					return err
				}
			}
			if state.RenderError != "" {
				return errors.New("render failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlOut, "html", "", "write a sandboxed preview page to this file")
	cmd.Flags().StringVar(&entryPoint, "entry", "", "entry point function name (overrides config)")
	cmd.Flags().StringSliceVar(&resources, "resource", nil, "external script URL to load in the preview")
	return cmd
}

func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
