package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conceptmap-dev/conceptmap-cli/internal/observability"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show concept repository statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx := cmd.Context()

		repos, err := buildRepositories(ctx, appConfig, logger)
		if err != nil {
			return err
		}
		defer repos.Close()

		stats := repos.Concepts.GetStatistics()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "queries:      %d\n", stats.Queries)
		fmt.Fprintf(out, "cache hits:   %d\n", stats.CacheHits)
		fmt.Fprintf(out, "cache misses: %d\n", stats.CacheMisses)
		fmt.Fprintf(out, "hit ratio:    %.2f\n", stats.HitRatio())
		if !stats.LastUpdated.IsZero() {
			fmt.Fprintf(out, "last updated: %s\n", stats.LastUpdated.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
