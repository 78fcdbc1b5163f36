package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
	"github.com/conceptmap-dev/conceptmap-cli/internal/integration"
	"github.com/conceptmap-dev/conceptmap-cli/internal/loader"
	"github.com/conceptmap-dev/conceptmap-cli/internal/observability"
)

var (
	integrateDomain string
	integrateForce  bool
)

var integrateCmd = &cobra.Command{
	Use:   "integrate <source.json> [more sources...]",
	Short: "Load concept records from JSON files into the knowledge graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx := cmd.Context()

		repos, err := buildRepositories(ctx, appConfig, logger)
		if err != nil {
			return err
		}
		defer repos.Close()

		domain := resolveDomain(integrateDomain)
		force := integrateForce || appConfig.Integration.ForceUpdate

		fileLoader := loader.NewFileLoader(logger, appConfig.Integration.LoadConcurrency)
		uc := integration.NewIntegrateConceptsUseCase(
			fileLoader, repos.Concepts, repos.Mappings,
			integration.NewLogPublisher(logger), logger)

		// One combined run: the loader reads the sources concurrently and
		// relationships spanning files land in the same mapping.
		summary := uc.ExecuteAll(ctx, args, domain, force)
		printSummary(cmd, strings.Join(args, ", "), summary)
		if summary.Result == schemas.ResultStorageError || summary.Result == schemas.ResultDependencyError {
			return fmt.Errorf("integration failed: %s", summary.Result)
		}
		return nil
	},
}

func printSummary(cmd *cobra.Command, source string, s *schemas.ConceptIntegrationSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s (domain=%s)\n", source, s.Result, s.Domain)
	fmt.Fprintf(out, "  processed=%d created=%d updated=%d relationships=%d in %dms\n",
		s.ConceptsProcessed, s.ConceptsCreated, s.ConceptsUpdated, s.RelationshipsCreated, s.ProcessingTimeMS)
	for _, warning := range s.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", warning)
	}
	for _, errMsg := range s.Errors {
		fmt.Fprintf(out, "  error: %s\n", errMsg)
	}
}

func init() {
	integrateCmd.Flags().StringVarP(&integrateDomain, "domain", "d", "", "domain to integrate the concepts into")
	integrateCmd.Flags().BoolVarP(&integrateForce, "force", "f", false, "overwrite concepts that already exist")
	rootCmd.AddCommand(integrateCmd)
}
