package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Desarso/playground/stores"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	archiveSQLite   string
	archivePostgres string
)

// NewArchiveCmd creates the `archive` command and its subcommands.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived sessions",
		Long: `Inspect transcripts and render outcomes recorded in an archive.

The archive is taken from --sqlite or --postgres, then from PLAYGROUND_ARCHIVE or the
archive section of the config file, and finally from playground_archive.sqlite in the
working directory when that file exists.

Examples:
  playground archive sessions
  playground archive --sqlite direct_session.sqlite show 3f2c...`,
	}
	cmd.PersistentFlags().StringVar(&archiveSQLite, "sqlite", "", "path to a SQLite archive")
	cmd.PersistentFlags().StringVar(&archivePostgres, "postgres", "", "PostgreSQL DSN of the archive")
	cmd.AddCommand(newArchiveSessionsCmd(), newArchiveShowCmd())
	return cmd
}

func openArchive() (stores.Archive, error) {
	switch {
	case archiveSQLite != "":
		return stores.NewSQLiteStoreSimple(archiveSQLite)
	case archivePostgres != "":
		return stores.NewPostgresStoreSimple(archivePostgres)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	archive, err := stores.NewArchive(cfg.Archive)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		return archive, nil
	}
	if _, err := os.Stat(stores.DefaultSQLitePath); err == nil {
		return stores.NewSQLiteStoreDefault()
	}
	return nil, fmt.Errorf("no archive configured")
}

func newArchiveSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List archived sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			sessions, err := archive.ListSessions()
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Println("No archived sessions")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tTURNS\tCREATED\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.SessionID, s.TurnCount,
					s.CreatedAt.Format("2006-01-02 15:04"), s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newArchiveShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show an archived transcript and its renders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			turns, err := archive.ListTurns(args[0])
			if err != nil {
				return fmt.Errorf("list turns: %w", err)
			}
			for _, turn := range turns {
				role := color.CyanString(turn.Role)
				if turn.Role == "user" {
					role = color.GreenString(turn.Role)
				}
				fmt.Printf("%d %s: %s\n", turn.Sequence, role, turn.Content)
			}

			renders, err := archive.RenderLog().ListRenders(args[0])
			if err != nil {
				return fmt.Errorf("list renders: %w", err)
			}
			if len(renders) == 0 {
				return nil
			}
			fmt.Println("\n" + color.CyanString("--- Renders ---"))
			for _, r := range renders {
				status := color.GreenString("✓")
				detail := fmt.Sprintf("%d resources", r.Resources)
				if r.Failed() {
					status = color.RedString("✗")
					detail = r.RenderErr
				}
				fmt.Printf("%s rev %d (%s, %dms): %s\n", status, r.Revision, r.Trigger, r.DurationMS, detail)
			}
			return nil
		},
	}
}
