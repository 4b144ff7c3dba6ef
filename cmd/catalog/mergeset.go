package main

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/linkage"
)

var mergeMessage string

func init() {
	mergesetCmd.AddCommand(mergesetDOICmd)
	mergesetCmd.AddCommand(mergesetContainersCmd)
	rootCmd.AddCommand(mergesetCmd)

	mergePublicationsCmd.Flags().StringVarP(&mergeMessage, "message", "m", "", "Message recorded on the audit command")
	mergeCmd.AddCommand(mergePublicationsCmd)
	rootCmd.AddCommand(mergeCmd)
}

var mergesetCmd = &cobra.Command{
	Use:   "mergeset",
	Short: "Report candidate duplicate groups",
	Long: `Report candidate duplicate groups. Merge sets are read-only; use
'catalog merge publications' to act on a group.`,
}

var mergesetDOICmd = &cobra.Command{
	Use:   "doi",
	Short: "Group primary publications sharing a DOI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMergeSet(cmd, (*linkage.Service).PublicationMergeSet)
	},
}

var mergesetContainersCmd = &cobra.Command{
	Use:   "containers",
	Short: "Group containers sharing an ISSN or a normalized name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMergeSet(cmd, (*linkage.Service).ContainerMergeSet)
	},
}

func runMergeSet(cmd *cobra.Command, build func(*linkage.Service, context.Context) (linkage.MergeSet, error)) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	svc := do.MustInvoke[*linkage.Service](injector)

	set, err := build(svc, commandContext(cmd))
	exitOnError(err, "building merge set")

	if !humanOutput {
		outputJSON(set)
		return nil
	}
	fmt.Printf("%d %s groups\n", len(set.Groups), set.Type)
	for _, g := range set.Groups {
		fmt.Printf("  %-40s %s\n", truncateString(g.Key, 40), formatIDs(g.IDs))
	}
	return nil
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate entities",
}

var mergePublicationsCmd = &cobra.Command{
	Use:   "publications <survivor-id> <other-id>...",
	Short: "Fold duplicate publications into a survivor",
	Long: `Fold duplicate publications into a survivor in one curator command.
Authorship, citations and raw records move to the survivor; the others are
kept but marked non-primary. Review status is unchanged.

Example:
  catalog merge publications 12 40 41`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMergePublications,
}

// MergeResponse is the response for merge commands.
type MergeResponse struct {
	Command  string  `json:"command"`
	Survivor int64   `json:"survivor"`
	Merged   []int64 `json:"merged"`
}

func runMergePublications(cmd *cobra.Command, args []string) error {
	ids := mustParseIDs(args)

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)

	cfg := do.MustInvoke[*config.Config](injector)
	svc := do.MustInvoke[*linkage.Service](injector)

	saved, err := svc.MergePublications(commandContext(cmd), ids[0], ids[1:],
		linkage.Options{Creator: commandCreator(cfg), Message: mergeMessage})
	exitOnError(err, "merging publications")

	if humanOutput {
		fmt.Printf("Merged %s into %d (command %s)\n", formatIDs(ids[1:]), ids[0], saved.PublicID)
	} else {
		outputJSON(MergeResponse{Command: saved.PublicID, Survivor: ids[0], Merged: ids[1:]})
	}
	return nil
}
