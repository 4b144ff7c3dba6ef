package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/bibtex"
	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/ingest"
	"github.com/cpritcha/catalog/internal/linkage"
	"github.com/cpritcha/catalog/internal/reference"
)

var ingestMessage string

func init() {
	ingestCmd.PersistentFlags().StringVarP(&ingestMessage, "message", "m", "", "Message recorded on the audit command")
	ingestCmd.AddCommand(ingestBibtexCmd)
	ingestCmd.AddCommand(ingestPDFCmd)
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load records into the catalog",
}

var ingestBibtexCmd = &cobra.Command{
	Use:   "bibtex <file>",
	Short: "Ingest every entry of a BibTeX file in one command",
	Long: `Ingest every entry of a BibTeX file in one audit command.

Each entry becomes a primary publication with its container, raw record and
raw authors. Lines of a cited-references field become non-primary cited
publications. Malformed entries are reported and skipped; any storage error
rolls back the whole file.

Example:
  catalog ingest bibtex savedrecs.bib`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestBibtex,
}

var ingestPDFCmd = &cobra.Command{
	Use:   "pdf <file>",
	Short: "Ingest a PDF by resolving its DOI or title",
	Long: `Ingest a PDF document. The DOI is read from the document text and
resolved against CrossRef; without a DOI, the first-page title is searched
and only a unique match is ingested.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestPDF,
}

// IngestResponse is the response for ingest commands.
type IngestResponse struct {
	Command      string              `json:"command"`
	Publications []int64             `json:"publications"`
	Cited        int                 `json:"cited"`
	RawAuthors   int                 `json:"raw_authors"`
	Skipped      []string            `json:"skipped,omitempty"`
	Link         *linkage.LinkResult `json:"link,omitempty"`
}

func runIngestBibtex(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		exitWithError(ExitError, "opening %s: %v", args[0], err)
	}
	parsed, parseErrs := bibtex.Parse(f)
	f.Close()

	entries := make([]reference.Entry, len(parsed))
	for i, e := range parsed {
		entries[i] = e.Map()
	}

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)

	cfg := do.MustInvoke[*config.Config](injector)
	svc := do.MustInvoke[*ingest.Service](injector)

	message := ingestMessage
	if message == "" {
		message = "ingest " + args[0]
	}
	ctx := commandContext(cmd)
	res, err := svc.IngestEntries(ctx, entries, ingest.Options{Creator: commandCreator(cfg), Message: message})
	exitOnError(err, "ingesting "+args[0])

	resp := newIngestResponse(res)
	for _, e := range parseErrs {
		resp.Skipped = append(resp.Skipped, e.Error())
	}
	resp.Link = linkAfterIngest(ctx, injector, cfg)
	printIngest(resp)
	return nil
}

func runIngestPDF(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)

	cfg := do.MustInvoke[*config.Config](injector)
	svc := do.MustInvoke[*ingest.Service](injector)

	ctx := commandContext(cmd)
	res, err := svc.IngestPDF(ctx, args[0], ingest.Options{Creator: commandCreator(cfg), Message: ingestMessage})
	exitOnError(err, "ingesting "+args[0])

	resp := newIngestResponse(res)
	resp.Link = linkAfterIngest(ctx, injector, cfg)
	printIngest(resp)
	return nil
}

// linkAfterIngest runs author linkage as a second command when the
// repository asks for it.
func linkAfterIngest(ctx context.Context, injector do.Injector, cfg *config.Config) *linkage.LinkResult {
	if !cfg.LinkAfterIngest {
		return nil
	}
	svc := do.MustInvoke[*linkage.Service](injector)
	res, err := svc.LinkAuthors(ctx, linkage.Options{Creator: commandCreator(cfg)})
	exitOnError(err, "linking authors")
	return res
}

func newIngestResponse(res *ingest.Result) IngestResponse {
	resp := IngestResponse{Command: res.Command.PublicID, Publications: res.PublicationIDs()}
	for _, e := range res.Entries {
		resp.Cited += len(e.CitedIDs)
		resp.RawAuthors += len(e.RawAuthorIDs)
	}
	return resp
}

func printIngest(resp IngestResponse) {
	if !humanOutput {
		outputJSON(resp)
		return
	}
	fmt.Printf("Ingested %d publications (%d cited, %d raw authors)\n",
		len(resp.Publications), resp.Cited, resp.RawAuthors)
	fmt.Printf("Command: %s\n", resp.Command)
	if len(resp.Skipped) > 0 {
		fmt.Printf("\nSkipped %d malformed entries:\n", len(resp.Skipped))
		for _, s := range resp.Skipped {
			fmt.Printf("  %s\n", s)
		}
	}
	if resp.Link != nil {
		printLinkHuman(resp.Link)
	}
}
