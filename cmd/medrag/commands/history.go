package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/medrag-io/medrag-go/internal/store"
)

// NewHistoryCmd constructs the `medrag history` command, which lists the
// most recent answered queries from the local run store.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent queries and their run statistics",
		Long: `List the most recent queries answered by this machine, newest first.

History is read from the local SQLite run store (~/.medrag/history.db by
default, override with MEDRAG_HISTORY_DB).

Examples:
  medrag history
  medrag history --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPath := os.Getenv("MEDRAG_HISTORY_DB")
			if dbPath == "" || dbPath == "disabled" {
				var err error
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
			}

			hs, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("history: failed to open store at %s: %w", dbPath, err)
			}
			defer hs.Close()

			records, err := hs.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no history yet")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, rec := range records {
				status := "ok"
				if rec.Error != "" {
					status = "failed"
				}
				fmt.Fprintf(out, "%s  %-6s  %6s  $%.6f  %s\n",
					rec.CreatedAt.Format(time.DateTime),
					status,
					rec.Latency.Round(time.Millisecond),
					rec.CostUSD,
					truncate(rec.Query, 70),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")

	return cmd
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
