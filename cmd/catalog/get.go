package main

import (
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/di/providers"
	"github.com/cpritcha/catalog/internal/reference"
)

var getRaw bool

func init() {
	getCmd.Flags().BoolVar(&getRaw, "raw", false, "Include raw records and raw authors")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <publication-id>",
	Short: "Get a single publication by ID",
	Long: `Get a publication with its container, authorship and citation edges.

Example:
  catalog get 12 --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// GetResponse is the response for the get command.
type GetResponse struct {
	*reference.PublicationDetail
	Cites      []int64               `json:"cites"`
	CitedBy    []int64               `json:"cited_by"`
	RawRecords []reference.RawRecord `json:"raw_records,omitempty"`
	RawAuthors []reference.RawAuthor `json:"raw_authors,omitempty"`
}

func runGet(cmd *cobra.Command, args []string) error {
	id := mustParseIDs(args)[0]

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	ctx := commandContext(cmd)
	detail, err := db.GetPublicationDetail(ctx, id)
	exitOnError(err, fmt.Sprintf("getting publication %d", id))

	resp := GetResponse{PublicationDetail: detail}
	resp.Cites, err = db.Cites(ctx, id)
	exitOnError(err, "reading citations")
	resp.CitedBy, err = db.CitedBy(ctx, id)
	exitOnError(err, "reading citations")
	if getRaw {
		resp.RawRecords, err = db.RawRecords(ctx, id)
		exitOnError(err, "reading raw records")
		resp.RawAuthors, err = db.RawAuthors(ctx, id)
		exitOnError(err, "reading raw authors")
	}

	if humanOutput {
		printPublicationDetail(resp)
	} else {
		outputJSON(resp)
	}
	return nil
}

func printPublicationDetail(resp GetResponse) {
	d := resp.PublicationDetail
	fmt.Printf("%d  [%s]", d.ID, d.Status)
	if !d.IsPrimary {
		fmt.Print("  (non-primary)")
	}
	fmt.Println()
	fmt.Println(strings.Repeat("=", DetailTitleMaxLen))
	fmt.Println()

	fmt.Printf("Title:    %s\n", wrapText(d.Title, TextWrapWidth, "          "))
	if authors := formatAuthorsShort(d.Authors, 10); authors != "" {
		fmt.Printf("Authors:  %s\n", wrapText(authors, TextWrapWidth, "          "))
	}
	if d.Venue != "" {
		fmt.Printf("Venue:    %s\n", d.Venue)
	}
	if d.DatePublishedText != "" {
		fmt.Printf("Date:     %s\n", d.DatePublishedText)
	}
	if d.DOI != "" {
		fmt.Printf("DOI:      %s\n", d.DOI)
	}
	if len(resp.Cites) > 0 {
		fmt.Printf("Cites:    %s\n", wrapText(formatIDs(resp.Cites), TextWrapWidth, "          "))
	}
	if len(resp.CitedBy) > 0 {
		fmt.Printf("Cited by: %s\n", wrapText(formatIDs(resp.CitedBy), TextWrapWidth, "          "))
	}

	if len(resp.RawRecords) > 0 {
		fmt.Println()
		fmt.Println("Raw records:")
		for _, r := range resp.RawRecords {
			fmt.Printf("  %-6d %s\n", r.ID, r.Kind)
		}
	}
	if len(resp.RawAuthors) > 0 {
		fmt.Println()
		fmt.Println("Raw authors:")
		for _, ra := range resp.RawAuthors {
			fmt.Printf("  %-6d %-7s %d  %s\n", ra.ID, ra.Role, ra.Position, ra.Name)
		}
	}
}
