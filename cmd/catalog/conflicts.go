package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/di/providers"
	"github.com/cpritcha/catalog/internal/linkage"
)

var (
	conflictsAll   bool
	resolveMessage string
)

func init() {
	conflictsCmd.Flags().BoolVar(&conflictsAll, "all", false, "Include resolved conflicts")
	conflictsResolveCmd.Flags().StringVarP(&resolveMessage, "message", "m", "", "Message recorded on the audit command")
	conflictsCmd.AddCommand(conflictsResolveCmd)
	rootCmd.AddCommand(conflictsCmd)
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List author groups that matched several canonical authors",
	Args:  cobra.NoArgs,
	RunE:  runConflicts,
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <author-id>",
	Short: "Settle a conflict by attaching its raw authors to one author",
	Args:  cobra.ExactArgs(2),
	RunE:  runConflictsResolve,
}

func runConflicts(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	conflicts, err := db.Conflicts(commandContext(cmd), !conflictsAll)
	exitOnError(err, "listing conflicts")

	if !humanOutput {
		outputJSON(conflicts)
		return nil
	}
	fmt.Printf("%d conflicts\n", len(conflicts))
	for _, c := range conflicts {
		state := "open"
		if c.Resolved {
			state = "resolved"
		}
		fmt.Printf("  %-6d pub %-6d raw [%s] -> authors [%s] %s\n",
			c.ID, c.PublicationID, formatIDs(c.RawAuthorIDs), formatIDs(c.AuthorIDs), state)
	}
	return nil
}

func runConflictsResolve(cmd *cobra.Command, args []string) error {
	ids := mustParseIDs(args)

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)

	cfg := do.MustInvoke[*config.Config](injector)
	svc := do.MustInvoke[*linkage.Service](injector)

	saved, err := svc.ResolveConflict(commandContext(cmd), ids[0], ids[1],
		linkage.Options{Creator: commandCreator(cfg), Message: resolveMessage})
	exitOnError(err, fmt.Sprintf("resolving conflict %d", ids[0]))

	if humanOutput {
		fmt.Printf("Resolved conflict %d as author %d (command %s)\n", ids[0], ids[1], saved.PublicID)
	} else {
		outputJSON(map[string]any{"command": saved.PublicID, "conflict": ids[0], "author": ids[1]})
	}
	return nil
}
