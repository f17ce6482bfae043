package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"convertmcp/internal/model"
	"convertmcp/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent tool invocations from the journal",
	RunE:  runHistory,
}

var historyLimit int

const maxHistoryMessage = 60

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", store.DefaultRecentLimit, "number of invocations to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil, false)
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return withExit(ExitConfigInvalid, "ERROR: no journal configured\nSet env: CONVERTMCP_JOURNAL=<path> or pass --journal")
	}

	journal := store.NewSQLiteStore(cfg.JournalPath)
	defer func() { _ = journal.Close() }()

	invs, err := journal.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("read journal %s: %w", cfg.JournalPath, err)
	}
	if len(invs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No invocations recorded in", cfg.JournalPath)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderHistory(invs, time.Now()))
	return nil
}

func renderHistory(invs []model.Invocation, now time.Time) string {
	headers := []string{"When", "Tool", "File", "Outcome", "Took", "Detail"}
	rows := make([][]string, 0, len(invs))
	for _, inv := range invs {
		outcome := inv.Outcome
		if inv.ErrorKind != "" {
			outcome += " (" + strings.ToLower(string(inv.ErrorKind)) + ")"
		}
		file := inv.FilePath
		if inv.ExtOut != "" {
			file += " -> " + inv.ExtOut
		}
		rows = append(rows, []string{
			humanize.RelTime(inv.StartedAt, now, "ago", "from now"),
			inv.Tool,
			file,
			outcome,
			inv.Duration.Round(time.Millisecond).String(),
			truncate(inv.Message, maxHistoryMessage),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
