// Package ingest turns structured source entries and external lookups into
// publications, raw records, raw author strings and citation edges.
package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/citeparse"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/storage"
)

// Processed lists the rows created for one entry.
type Processed struct {
	PublicationID int64   `json:"publication_id"`
	ContainerID   int64   `json:"container_id"`
	RawRecordID   int64   `json:"raw_record_id"`
	RawAuthorIDs  []int64 `json:"raw_author_ids"`
	CitedIDs      []int64 `json:"cited_ids,omitempty"`
}

// ProcessEntry writes one source entry: a fresh container, the publication,
// a raw record holding payload, the raw author strings of the author and
// editor fields, and one cited publication per cited-references line.
func ProcessEntry(ctx context.Context, tx *storage.Tx, entry reference.Entry, payload reference.Payload) (*Processed, error) {
	date, dateText := DerivePublishedDate(entry.Get(reference.FieldYear))

	containerID, err := makeContainer(ctx, tx, entry)
	if err != nil {
		return nil, err
	}

	pubID, err := tx.CreatePublication(ctx, reference.Publication{
		Title:             SanitizeTitle(entry.Get(reference.FieldTitle)),
		DatePublishedText: dateText,
		DatePublished:     date,
		Abstract:          entry.Get(reference.FieldAbstract),
		DOI:               entry.Get(reference.FieldDOI),
		ISBN:              entry.Get(reference.FieldISBN),
		Volume:            entry.Get(reference.FieldVolume),
		Issue:             entry.Get(reference.FieldNumber),
		Pages:             entry.Get(reference.FieldPages),
		Series:            entry.Get(reference.FieldSeries),
		Edition:           entry.Get(reference.FieldEdition),
		Language:          entry.Get(reference.FieldLanguage),
		EntryType:         strings.ToLower(entry.Get(reference.FieldEntryType)),
		Status:            reference.StatusUntagged,
		IsPrimary:         true,
		ContainerID:       &containerID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating publication: %w", err)
	}

	rawID, err := tx.CreateRawRecord(ctx, pubID, payload)
	if err != nil {
		return nil, fmt.Errorf("creating raw record: %w", err)
	}

	out := &Processed{PublicationID: pubID, ContainerID: containerID, RawRecordID: rawID}

	for _, line := range citeparse.SplitLines(entry.Get(reference.FieldCitedReferences)) {
		citedID, err := makeReference(ctx, tx, pubID, line)
		if err != nil {
			return nil, fmt.Errorf("cited reference %q: %w", line, err)
		}
		out.CitedIDs = append(out.CitedIDs, citedID)
	}

	for _, field := range []struct {
		name string
		role reference.Role
	}{
		{reference.FieldAuthor, reference.RoleAuthor},
		{reference.FieldEditor, reference.RoleEditor},
	} {
		ids, err := makeRawAuthors(ctx, tx, rawID, SplitAuthors(entry.Get(field.name)), field.role)
		if err != nil {
			return nil, err
		}
		out.RawAuthorIDs = append(out.RawAuthorIDs, ids...)
	}

	return out, nil
}

// makeContainer always creates a new container for the entry's venue.
// Duplicate venues are found later by container merge sets.
func makeContainer(ctx context.Context, tx *storage.Tx, entry reference.Entry) (int64, error) {
	name := entry.Get(reference.FieldJournal)
	if name == "" {
		name = entry.Get(reference.FieldBooktitle)
	}
	typ := entry.Get("type")
	if typ == "" {
		typ = strings.ToLower(entry.Get(reference.FieldEntryType))
	}

	id, err := tx.CreateContainer(ctx, reference.Container{
		Type:        typ,
		ISSN:        entry.Get(reference.FieldISSN),
		PrimaryName: name,
	})
	if err != nil {
		return 0, fmt.Errorf("creating container: %w", err)
	}
	if name != "" {
		if _, err := tx.AddContainerAlias(ctx, id, name); err != nil {
			return 0, fmt.Errorf("creating container alias: %w", err)
		}
	}
	return id, nil
}

// makeReference records one cited-reference line as a non-primary
// publication cited by citingID.
func makeReference(ctx context.Context, tx *storage.Tx, citingID int64, line string) (int64, error) {
	el := citeparse.Parse(line)
	date, dateText := DerivePublishedDate(el.Year)

	var containerID *int64
	if el.Container != "" {
		id, err := tx.CreateContainer(ctx, reference.Container{PrimaryName: el.Container})
		if err != nil {
			return 0, fmt.Errorf("creating container: %w", err)
		}
		if _, err := tx.AddContainerAlias(ctx, id, el.Container); err != nil {
			return 0, fmt.Errorf("creating container alias: %w", err)
		}
		containerID = &id
	}

	citedID, err := tx.CreatePublication(ctx, reference.Publication{
		DatePublishedText: dateText,
		DatePublished:     date,
		DOI:               el.DOI,
		Volume:            el.Volume,
		Pages:             el.Page,
		Status:            reference.StatusUntagged,
		IsPrimary:         false,
		ContainerID:       containerID,
	})
	if err != nil {
		return 0, fmt.Errorf("creating cited publication: %w", err)
	}

	rawID, err := tx.CreateRawRecord(ctx, citedID, reference.BibTeXRefPayload{
		Line:      line,
		Author:    el.Author,
		Year:      el.Year,
		Container: el.Container,
		Volume:    el.Volume,
		Page:      el.Page,
		DOI:       el.DOI,
	})
	if err != nil {
		return 0, fmt.Errorf("creating reference raw record: %w", err)
	}

	if name := citeparse.StripOrdinal(el.Author); name != "" {
		if _, err := makeRawAuthors(ctx, tx, rawID, []string{name}, reference.RoleAuthor); err != nil {
			return 0, err
		}
	}

	if err := tx.AddCitation(ctx, citingID, citedID); err != nil {
		return 0, fmt.Errorf("adding citation: %w", err)
	}
	return citedID, nil
}

// makeRawAuthors stores each name of one role in order. Names that
// normalize to nothing are skipped.
func makeRawAuthors(ctx context.Context, tx *storage.Tx, rawID int64, names []string, role reference.Role) ([]int64, error) {
	var ids []int64
	position := 0
	for _, raw := range names {
		n := author.Split(raw)
		if n.IsZero() {
			continue
		}
		id, err := tx.CreateRawAuthor(ctx, reference.RawAuthor{
			RawRecordID: rawID,
			Name:        n.String(),
			FamilyName:  n.Family,
			GivenName:   n.Given,
			Role:        role,
			Position:    position,
		})
		if err != nil {
			return nil, fmt.Errorf("creating raw author %q: %w", raw, err)
		}
		ids = append(ids, id)
		position++
	}
	return ids, nil
}

var andPattern = regexp.MustCompile(`\band\b`)

// SplitAuthors splits a BibTeX name list on the word "and". Segments are
// trimmed and empty ones dropped. "and" inside a name is not a separator.
func SplitAuthors(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, seg := range andPattern.Split(s, -1) {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// DerivePublishedDate returns January 1 of a purely numeric year together
// with the verbatim text. Any other text yields no date.
func DerivePublishedDate(text string) (*time.Time, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ""
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return nil, text
		}
	}
	year, err := strconv.Atoi(text)
	if err != nil || year < 1 || year > 9999 {
		return nil, text
	}
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &d, text
}

var titleReplacer = strings.NewReplacer("{", "", "}", "")

// SanitizeTitle strips BibTeX braces and collapses whitespace, line breaks
// included.
func SanitizeTitle(s string) string {
	return strings.Join(strings.Fields(titleReplacer.Replace(s)), " ")
}
