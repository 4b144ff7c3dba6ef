package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/di/providers"
	"github.com/cpritcha/catalog/internal/reference"
)

var authorsName string

func init() {
	authorsCmd.Flags().StringVar(&authorsName, "name", "", `Only authors with an alias matching "Family", "Given Family" or "Family, Given"`)
	rootCmd.AddCommand(authorsCmd)
}

var authorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "List canonical authors and their aliases",
	Args:  cobra.NoArgs,
	RunE:  runAuthors,
}

// filterAuthors keeps the authors with an alias matching q.
func filterAuthors(authors []reference.Author, q author.Query) []reference.Author {
	out := []reference.Author{}
	for _, a := range authors {
		names := make([]author.Name, 0, len(a.Aliases)+1)
		names = append(names, author.NewName(a.FamilyName, a.GivenName))
		for _, al := range a.Aliases {
			names = append(names, author.NewName(al.FamilyName, al.GivenName))
		}
		if q.MatchesAny(names) {
			out = append(out, a)
		}
	}
	return out
}

func runAuthors(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	authors, err := db.ListAuthors(commandContext(cmd))
	exitOnError(err, "listing authors")
	if authorsName != "" {
		authors = filterAuthors(authors, author.ParseQuery(authorsName))
	}

	if !humanOutput {
		outputJSON(authors)
		return nil
	}
	fmt.Printf("%d authors\n", len(authors))
	for _, a := range authors {
		fmt.Printf("  %-6d %s, %s\n", a.ID, a.FamilyName, a.GivenName)
		for _, al := range a.Aliases {
			if al.FamilyName == a.FamilyName && al.GivenName == a.GivenName {
				continue
			}
			fmt.Printf("         aka %s, %s\n", al.FamilyName, al.GivenName)
		}
	}
	return nil
}
