package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/di/providers"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show table sizes",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	s, err := db.Stats(commandContext(cmd))
	exitOnError(err, "reading stats")

	if !humanOutput {
		outputJSON(s)
		return nil
	}
	fmt.Printf("Publications:   %d (%d primary)\n", s.Publications, s.PrimaryPublications)
	fmt.Printf("Containers:     %d\n", s.Containers)
	fmt.Printf("Citations:      %d\n", s.Citations)
	fmt.Printf("Raw records:    %d\n", s.RawRecords)
	fmt.Printf("Raw authors:    %d (%d unlinked)\n", s.RawAuthors, s.UnlinkedRawAuthors)
	fmt.Printf("Authors:        %d (%d aliases)\n", s.Authors, s.AuthorAliases)
	fmt.Printf("Open conflicts: %d\n", s.OpenConflicts)
	fmt.Printf("Audit entries:  %d\n", s.AuditEntries)
	return nil
}
