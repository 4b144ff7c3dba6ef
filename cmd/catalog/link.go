package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/linkage"
)

var linkDryRun bool

func init() {
	linkAuthorsCmd.Flags().BoolVar(&linkDryRun, "dry-run", false, "Show the plan without writing")
	linkCmd.AddCommand(linkAuthorsCmd)
	rootCmd.AddCommand(linkCmd)
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Resolve raw records to canonical entities",
}

var linkAuthorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "Link pending raw authors to canonical authors",
	Long: `Group the raw author strings of each publication across its sources,
then match every group against existing author aliases:

  one match      aliases are attached to that author
  no match       a new author is created
  several        a conflict is recorded for curator review

The whole batch is one audit command. Running it again with no new raw
authors writes nothing.`,
	Args: cobra.NoArgs,
	RunE: runLinkAuthors,
}

func runLinkAuthors(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)

	cfg := do.MustInvoke[*config.Config](injector)
	svc := do.MustInvoke[*linkage.Service](injector)

	res, err := svc.LinkAuthors(commandContext(cmd), linkage.Options{Creator: commandCreator(cfg), DryRun: linkDryRun})
	exitOnError(err, "linking authors")

	if humanOutput {
		printLinkHuman(res)
	} else {
		outputJSON(res)
	}
	return nil
}

func printLinkHuman(res *linkage.LinkResult) {
	p := res.Plan
	fmt.Printf("%d groups: %d attach, %d create, %d conflict\n",
		len(p.Decisions), p.Count(linkage.DecisionAttach), p.Count(linkage.DecisionCreate), p.Count(linkage.DecisionConflict))
	if res.Applied == nil {
		for _, d := range p.Decisions {
			fmt.Printf("  %-8s pub %-6d %s\n", d.Kind, d.Group.PublicationID, d.Name)
		}
		return
	}
	a := res.Applied
	fmt.Printf("Command %s: %d authors created, %d aliases attached, %d raw authors linked, %d new conflicts\n",
		a.Command.PublicID, len(a.AuthorsCreated), a.AliasesAttached, a.RawAuthorsLinked, len(a.Conflicts))
}
