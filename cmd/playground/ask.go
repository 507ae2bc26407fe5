package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Desarso/playground"
	"github.com/Desarso/playground/sandbox"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewAskCmd creates the `ask` command.
func NewAskCmd() *cobra.Command {
	var htmlOut string
	var showSource bool

	cmd := &cobra.Command{
		Use:   "ask <request>",
		Short: "Run a single generation turn and render the result",
		Long: `Send one request to the configured backend, render the component it
returns and print the reply.

Examples:
  playground ask "a pricing card with three tiers"
  playground ask --html card.html "a login form"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := playground.New(cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			session := p.Sessions.Create()
			result, err := session.RunTurn(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				var turnErr *playground.TurnError
				if errors.As(err, &turnErr) {
					fmt.Println(color.YellowString(result.Reply))
				}
				return err
			}

			fmt.Println(color.CyanString("Assistant:"), result.Reply)
			if !result.Parsed.HasComponent() {
				fmt.Println(color.YellowString("No component in reply."))
				return nil
			}

			state := result.Playground
			if showSource {
				fmt.Println(color.CyanString("--- Source ---"))
				fmt.Println(state.Source)
			}
			if state.RenderError != "" {
				fmt.Printf("%s %s\n", color.RedString("✗"), state.RenderError)
			} else {
				fmt.Printf("%s Rendered revision %d\n", color.GreenString("✓"), state.Revision)
			}
			if htmlOut != "" {
				return writePreview(htmlOut, state, cfg.EntryPoint)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlOut, "html", "", "write a sandboxed preview page to this file")
	cmd.Flags().BoolVar(&showSource, "source", false, "print the generated component source")
	return cmd
}

func writePreview(path string, state sandbox.State, entryPoint string) error {
	doc := sandbox.Document(state, sandbox.DocumentOptions{EntryPoint: entryPoint})
	if err := os.WriteFile(path, []byte(sandbox.WrapInSandbox(doc)), 0o644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	fmt.Printf("Preview written to %s\n", color.CyanString(path))
	return nil
}
