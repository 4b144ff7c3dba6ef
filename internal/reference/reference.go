// Package reference defines the core domain types for the citation catalog.
package reference

import (
	"strings"
	"time"
)

// Status is the curation state of a publication.
type Status string

const (
	StatusUntagged          Status = "UNTAGGED"
	StatusNeedsAuthorReview Status = "NEEDS_AUTHOR_REVIEW"
	StatusFlagged           Status = "FLAGGED"
	StatusAuthorUpdated     Status = "AUTHOR_UPDATED"
	StatusInvalid           Status = "INVALID"
	StatusComplete          Status = "COMPLETE"
)

// ValidStatuses lists every publication status.
var ValidStatuses = []Status{
	StatusUntagged, StatusNeedsAuthorReview, StatusFlagged,
	StatusAuthorUpdated, StatusInvalid, StatusComplete,
}

// ParseStatus returns the status named by s (case-insensitive).
func ParseStatus(s string) (Status, bool) {
	want := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range ValidStatuses {
		if st == want {
			return st, true
		}
	}
	return "", false
}

// Publication is a canonical publication record.
type Publication struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	DatePublishedText string     `json:"date_published_text"`      // Verbatim year/date from the source
	DatePublished     *time.Time `json:"date_published,omitempty"` // Jan 1 of a numeric year, nil otherwise
	Abstract          string     `json:"abstract,omitempty"`
	DOI               string     `json:"doi,omitempty"`
	ISBN              string     `json:"isbn,omitempty"`
	Volume            string     `json:"volume,omitempty"`
	Issue             string     `json:"issue,omitempty"`
	Pages             string     `json:"pages,omitempty"`
	Series            string     `json:"series,omitempty"`
	Edition           string     `json:"edition,omitempty"`
	Language          string     `json:"language,omitempty"`
	EntryType         string     `json:"entry_type,omitempty"` // article, book, inproceedings, ...
	Status            Status     `json:"status"`
	IsPrimary         bool       `json:"is_primary"`
	ContainerID       *int64     `json:"container_id,omitempty"`
}

// Year returns the numeric publication year, or 0 if unknown.
func (p Publication) Year() int {
	if p.DatePublished == nil {
		return 0
	}
	return p.DatePublished.Year()
}

// Container is a canonical venue (journal, proceedings, book series).
type Container struct {
	ID          int64    `json:"id"`
	Type        string   `json:"type,omitempty"`
	ISSN        string   `json:"issn,omitempty"`
	PrimaryName string   `json:"primary_name,omitempty"`
	Aliases     []string `json:"aliases,omitempty"` // Filled on reads
}

// ContainerAlias is one name variant of a container.
type ContainerAlias struct {
	ID          int64  `json:"id"`
	ContainerID int64  `json:"container_id"`
	Name        string `json:"name"`
}

// Citation is a directed edge: PublicationID cites CitedID.
type Citation struct {
	PublicationID int64 `json:"publication_id"`
	CitedID       int64 `json:"cited_id"`
}

// PublicationDetail bundles a publication with its resolved container and authorship.
type PublicationDetail struct {
	Publication
	Container *Container          `json:"container,omitempty"`
	Venue     string              `json:"venue,omitempty"` // First container alias
	Authors   []PublicationAuthor `json:"authors"`
}
