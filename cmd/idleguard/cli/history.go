package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"idleguard/pkg/history"
	"idleguard/pkg/idle"
)

var (
	historyDB    string
	historyLimit int
	historyKind  string
	historyJSON  bool
	historyPrune time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the protection event journal",
	Long: `History prints the newest protection events first.

Examples:
  idleguard history --limit 10
  idleguard history --kind nozzle_timeout --json
  idleguard history --prune 720h`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyDB, "db", "idleguard.db", "event journal database")
	f.IntVarP(&historyLimit, "limit", "n", 20, "number of events to show")
	f.StringVar(&historyKind, "kind", "", "only show events of this kind")
	f.BoolVar(&historyJSON, "json", false, "print JSON")
	f.DurationVar(&historyPrune, "prune", 0, "delete events older than this instead of listing")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := history.Open(historyDB)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyPrune > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-historyPrune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d events\n", n)
		return nil
	}

	events, err := store.List(ctx, history.Query{Kind: idle.Kind(historyKind), Limit: historyLimit})
	if err != nil {
		return err
	}
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "no events")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(out, "%s  %-17s %-10s %6.1f -> %6.1f  %s\n",
			ev.At.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.Resource, ev.From, ev.To, ev.Message)
	}
	return nil
}
