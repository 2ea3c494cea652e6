package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SteelMorgan/iostat-loader/internal/config"
	"github.com/SteelMorgan/iostat-loader/internal/journal"
)

func newJournalCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect or edit the import journal",
	}
	cmd.PersistentFlags().StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "BoltDB file recording completed imports")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List imported archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tPOINTS\tIMPORTED\tRUN")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Path, e.Points, e.ImportedAt.Format(time.RFC3339), e.RunID)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <path>...",
		Short: "Forget archives so the next run imports them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer j.Close()

			for _, path := range args {
				if err := j.Delete(cmd.Context(), path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", path)
			}
			return nil
		},
	})

	return cmd
}

func openJournal(cfg *config.Config) (*journal.BoltDBJournal, error) {
	if cfg.JournalPath == "" {
		return nil, fmt.Errorf("--journal or JOURNAL_PATH is required")
	}
	return journal.NewBoltDBJournal(cfg.JournalPath)
}
