package main

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/bibtex"
	"github.com/cpritcha/catalog/internal/di/providers"
	"github.com/cpritcha/catalog/internal/reference"
)

var (
	exportOutput string
	exportAll    bool
)

func init() {
	exportBibtexCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	exportBibtexCmd.Flags().BoolVar(&exportAll, "all", false, "Include non-primary publications")
	exportCmd.AddCommand(exportBibtexCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog",
}

var exportBibtexCmd = &cobra.Command{
	Use:   "bibtex [publication-id]...",
	Short: "Export publications as BibTeX",
	Long: `Export canonical publications as BibTeX. With no ids, every primary
publication is exported.

Example:
  catalog export bibtex -o catalog.bib
  catalog export bibtex 12 13`,
	RunE: runExportBibtex,
}

func runExportBibtex(cmd *cobra.Command, args []string) error {
	ids := mustParseIDs(args)

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	ctx := commandContext(cmd)
	if len(ids) == 0 {
		pubs, err := db.ListPublications(ctx, !exportAll)
		exitOnError(err, "listing publications")
		for _, p := range pubs {
			ids = append(ids, p.ID)
		}
	}

	details := make([]reference.PublicationDetail, 0, len(ids))
	for _, id := range ids {
		d, err := db.GetPublicationDetail(ctx, id)
		exitOnError(err, fmt.Sprintf("getting publication %d", id))
		details = append(details, *d)
	}
	out := bibtex.ToBibTeXList(details)

	if exportOutput == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(exportOutput, []byte(out), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", exportOutput, err)
	}
	if humanOutput {
		fmt.Printf("Exported %d publications to %s\n", len(details), exportOutput)
	} else {
		outputJSON(map[string]any{"status": "exported", "path": exportOutput, "publications": len(details)})
	}
	return nil
}
