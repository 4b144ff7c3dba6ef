// Package crossref provides a client for the CrossRef REST API.
package crossref

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Work is a bibliographic record from the CrossRef works endpoint.
type Work struct {
	DOI            string        `json:"DOI"`
	Type           string        `json:"type,omitempty"`
	Title          []string      `json:"title,omitempty"`
	ContainerTitle []string      `json:"container-title,omitempty"`
	Author         []Contributor `json:"author,omitempty"`
	Editor         []Contributor `json:"editor,omitempty"`
	Issued         DateParts     `json:"issued"`
	Volume         string        `json:"volume,omitempty"`
	Issue          string        `json:"issue,omitempty"`
	Page           string        `json:"page,omitempty"`
	ISSN           []string      `json:"ISSN,omitempty"`
	ISBN           []string      `json:"ISBN,omitempty"`
	Publisher      string        `json:"publisher,omitempty"`
	Abstract       string        `json:"abstract,omitempty"`
	Language       string        `json:"language,omitempty"`

	// Raw is the work exactly as the API returned it.
	Raw json.RawMessage `json:"-"`
}

// Contributor is an author or editor of a work. Organizations carry Name only.
type Contributor struct {
	Given    string `json:"given,omitempty"`
	Family   string `json:"family,omitempty"`
	Name     string `json:"name,omitempty"`
	Sequence string `json:"sequence,omitempty"` // first, additional
}

// String returns "Family, Given", or the organization name.
func (c Contributor) String() string {
	switch {
	case c.Family != "" && c.Given != "":
		return c.Family + ", " + c.Given
	case c.Family != "":
		return c.Family
	default:
		return c.Name
	}
}

// DateParts is CrossRef's partial date: [[year, month, day]].
type DateParts struct {
	Parts [][]int `json:"date-parts"`
}

// Year returns the first date part, or 0 if unknown.
func (d DateParts) Year() int {
	if len(d.Parts) == 0 || len(d.Parts[0]) == 0 {
		return 0
	}
	return d.Parts[0][0]
}

// FirstTitle returns the work's main title.
func (w Work) FirstTitle() string {
	if len(w.Title) == 0 {
		return ""
	}
	return w.Title[0]
}

// FirstContainer returns the work's main container title.
func (w Work) FirstContainer() string {
	if len(w.ContainerTitle) == 0 {
		return ""
	}
	return w.ContainerTitle[0]
}

// YearText returns the year as text, or "" if unknown.
func (w Work) YearText() string {
	if y := w.Issued.Year(); y != 0 {
		return fmt.Sprintf("%d", y)
	}
	return ""
}

// AuthorList joins the authors in BibTeX "A and B" form.
func (w Work) AuthorList() string {
	return joinContributors(w.Author)
}

// EditorList joins the editors in BibTeX "A and B" form.
func (w Work) EditorList() string {
	return joinContributors(w.Editor)
}

func joinContributors(cs []Contributor) string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		if s := c.String(); s != "" {
			names = append(names, s)
		}
	}
	return strings.Join(names, " and ")
}

// Query describes what is known about a publication being looked up.
type Query struct {
	DOI    string `json:"doi,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"` // First author family name
	Year   string `json:"year,omitempty"`
}

type workResponse struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
}

type searchResponse struct {
	Status  string `json:"status"`
	Message struct {
		TotalResults int               `json:"total-results"`
		Items        []json.RawMessage `json:"items"`
	} `json:"message"`
}
