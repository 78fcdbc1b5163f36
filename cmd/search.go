package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
	"github.com/conceptmap-dev/conceptmap-cli/internal/observability"
)

var (
	searchDomain  string
	searchLevel   string
	searchType    string
	searchTags    []string
	searchKeyword string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored concepts by domain, level, type, tags and keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx := cmd.Context()

		repos, err := buildRepositories(ctx, appConfig, logger)
		if err != nil {
			return err
		}
		defer repos.Close()

		criteria := schemas.SearchCriteria{
			Domain:   searchDomain,
			Tags:     searchTags,
			Keywords: searchKeyword,
		}
		if searchLevel != "" {
			level, err := schemas.ParseConceptLevel(searchLevel)
			if err != nil {
				return err
			}
			criteria.Level = level
		}
		if searchType != "" {
			conceptType, err := schemas.ParseConceptType(searchType)
			if err != nil {
				return err
			}
			criteria.Type = conceptType
		}

		concepts, err := repos.Concepts.Search(ctx, criteria)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(concepts) == 0 {
			fmt.Fprintln(out, "no concepts matched")
			return nil
		}
		for _, c := range concepts {
			fmt.Fprintf(out, "%-24s %-14s %-12s %s (complexity %.2f)\n",
				c.ID, c.Level, c.Type, c.Name, c.ComplexityScore())
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchDomain, "domain", "d", "", "restrict to a domain")
	searchCmd.Flags().StringVar(&searchLevel, "level", "", "restrict to a level (elementary..research)")
	searchCmd.Flags().StringVar(&searchType, "type", "", "restrict to a concept type (axiom, theorem, ...)")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "require a tag (repeatable)")
	searchCmd.Flags().StringVarP(&searchKeyword, "keyword", "k", "", "substring match on name and description")
	rootCmd.AddCommand(searchCmd)
}
