package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"notam_parser/internal/app"
	"notam_parser/internal/storage"
)

var errHistoryDisabled = errors.New("clickhouse history is not enabled (set CLICKHOUSE_ENABLED=true)")

func historyCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query recorded extractions in ClickHouse",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print totals by status, source and airway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), g, func(ctx context.Context, db *storage.ClickHouseDB) error {
				s, err := db.GetStats(ctx)
				if err != nil {
					return fmt.Errorf("history stats: %w", err)
				}
				writeStats(cmd.OutOrStdout(), s)
				return nil
			})
		},
	}

	var q storage.QueryParams
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded extractions as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), g, func(ctx context.Context, db *storage.ClickHouseDB) error {
				rows, err := db.Query(ctx, q)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range rows {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	list.Flags().StringVar(&q.ID, "id", "", "Extraction id")
	list.Flags().StringVar(&q.Status, "status", "", "Only this status (ok, fallback, no_segments, ...)")
	list.Flags().StringVar(&q.Source, "source", "", "Only this source (parser, memory, completion)")
	list.Flags().StringVar(&q.FullText, "search", "", "Substring of the NOTAM text")
	list.Flags().IntVar(&q.Limit, "limit", 100, "Maximum rows")
	list.Flags().IntVar(&q.Offset, "offset", 0, "Rows to skip")
	list.Flags().BoolVar(&q.OrderDesc, "desc", false, "Newest first")

	var status string
	count := &cobra.Command{
		Use:   "count",
		Short: "Print the number of recorded extractions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), g, func(ctx context.Context, db *storage.ClickHouseDB) error {
				n, err := db.Count(ctx, status)
				if err != nil {
					return fmt.Errorf("history count: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	count.Flags().StringVar(&status, "status", "", "Only this status")

	cmd.AddCommand(stats, list, count)
	return cmd
}

// withHistory opens the app with ClickHouse and runs fn against it.
func withHistory(ctx context.Context, g *globals, fn func(context.Context, *storage.ClickHouseDB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := g.open(ctx, app.Options{Offline: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.History == nil {
		return errHistoryDisabled
	}
	return fn(ctx, a.History)
}

func writeStats(w io.Writer, s *storage.Stats) {
	fmt.Fprintf(w, "total: %d\n", s.TotalExtractions)
	writeCounts(w, "status", s.ByStatus)
	writeCounts(w, "source", s.BySource)
	writeCounts(w, "airway", s.TopAirways)
}

// writeCounts prints counts largest first, ties by name.
func writeCounts(w io.Writer, title string, counts map[string]uint64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-12s %d\n", k, counts[k])
	}
}
