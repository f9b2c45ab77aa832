package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the "history" subcommand.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded tool invocations, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().String("history-db", "", "Path to invocation history SQLite database (default: ~/.opensearch-mcp/history.db)")
	cmd.Flags().Int("limit", 20, "Maximum number of records; 0 prints all")
	cmd.Flags().Bool("json", false, "Print records as JSON")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	records, err := store.List(cmd.Context(), limit)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}

	if asJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding history: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No invocations recorded.")
		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "TIME\tTOOL\tCLUSTER\tRESULT\tDURATION_MS")
	for _, rec := range records {
		result := "ok"
		if !rec.Success {
			result = string(rec.Kind)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\n",
			rec.CreatedAt.Format(time.RFC3339),
			rec.Tool,
			dashIfEmpty(rec.Cluster),
			result,
			rec.DurationMS,
		)
	}
	return writer.Flush()
}
