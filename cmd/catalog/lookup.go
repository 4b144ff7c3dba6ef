package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/ingest"
)

func init() {
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <publication-id>...",
	Short: "Look up publications in CrossRef and record the outcome",
	Long: `Query CrossRef for each publication and record the outcome as raw
records owned by it: success, ambiguous (with one candidate record per
match), not found, or error. Each publication is one audit command.

Example:
  catalog lookup 12 13`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	ids := mustParseIDs(args)

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)

	cfg := do.MustInvoke[*config.Config](injector)
	svc := do.MustInvoke[*ingest.Service](injector)

	var results []*ingest.LookupResult
	for _, id := range ids {
		res, err := svc.Lookup(commandContext(cmd), id, ingest.Options{Creator: commandCreator(cfg)})
		exitOnError(err, fmt.Sprintf("looking up publication %d", id))
		results = append(results, res)
	}

	if !humanOutput {
		outputJSON(results)
		return nil
	}
	for _, r := range results {
		fmt.Printf("%d: %s", r.PublicationID, r.Kind)
		switch {
		case len(r.CandidateDOIs) > 0:
			fmt.Printf(" (%d candidates)", len(r.CandidateDOIs))
		case r.Error != "":
			fmt.Printf(" (%s)", r.Error)
		}
		fmt.Println()
	}
	return nil
}
