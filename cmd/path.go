package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conceptmap-dev/conceptmap-cli/internal/integration"
	"github.com/conceptmap-dev/conceptmap-cli/internal/observability"
)

var (
	pathDomain   string
	pathMaxDepth int
)

var pathCmd = &cobra.Command{
	Use:   "path <target-concept> [more targets...]",
	Short: "Generate prerequisite-ordered learning paths for target concepts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx := cmd.Context()

		repos, err := buildRepositories(ctx, appConfig, logger)
		if err != nil {
			return err
		}
		defer repos.Close()

		maxDepth := pathMaxDepth
		if maxDepth == 0 {
			maxDepth = appConfig.Path.MaxDepth
		}

		uc := integration.NewGenerateLearningPathUseCase(repos.Mappings, logger)
		paths, err := uc.Execute(ctx, args, resolveDomain(pathDomain), maxDepth)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(paths) == 0 {
			fmt.Fprintln(out, "no requested target exists in the domain mapping")
			return nil
		}
		targets := make([]string, 0, len(paths))
		for target := range paths {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		for _, target := range targets {
			fmt.Fprintf(out, "%s: %s\n", target, strings.Join(paths[target], " -> "))
		}
		return nil
	},
}

func init() {
	pathCmd.Flags().StringVarP(&pathDomain, "domain", "d", "", "domain whose mapping to traverse (default from config)")
	pathCmd.Flags().IntVar(&pathMaxDepth, "max-depth", 0, "prerequisite levels to traverse (default from config)")
	rootCmd.AddCommand(pathCmd)
}
