package bibtex

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cpritcha/catalog/internal/reference"
)

// ToBibTeX converts a canonical publication to a BibTeX entry.
func ToBibTeX(d reference.PublicationDetail) string {
	entryType := determineEntryType(d)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, citeKey(d)))

	if names := formatAuthors(d.Authors, reference.RoleAuthor); names != "" {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", names))
	}
	if names := formatAuthors(d.Authors, reference.RoleEditor); names != "" {
		b.WriteString(fmt.Sprintf("  editor = {%s},\n", names))
	}

	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(d.Title)))

	if d.Venue != "" {
		fieldName := "journal"
		if entryType == "inproceedings" || entryType == "incollection" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(d.Venue)))
	}

	if year := yearText(d.Publication); year != "" {
		b.WriteString(fmt.Sprintf("  year = {%s},\n", year))
	}

	optional := []struct{ name, value string }{
		{"volume", d.Volume},
		{"number", d.Issue},
		{"pages", d.Pages},
		{"series", d.Series},
		{"edition", d.Edition},
		{"isbn", d.ISBN},
		{"doi", d.DOI},
	}
	for _, f := range optional {
		if f.value != "" {
			b.WriteString(fmt.Sprintf("  %s = {%s},\n", f.name, f.value))
		}
	}
	if d.Container != nil && d.Container.ISSN != "" {
		b.WriteString(fmt.Sprintf("  issn = {%s},\n", d.Container.ISSN))
	}
	if d.Abstract != "" {
		b.WriteString(fmt.Sprintf("  abstract = {%s},\n", escapeLatex(d.Abstract)))
	}

	b.WriteString("}\n")
	return b.String()
}

// ToBibTeXList converts multiple publications to BibTeX format.
func ToBibTeXList(details []reference.PublicationDetail) string {
	var entries []string
	for _, d := range details {
		entries = append(entries, ToBibTeX(d))
	}
	return strings.Join(entries, "\n")
}

// citeKey builds "Family2020-12" from the first author, year and id.
func citeKey(d reference.PublicationDetail) string {
	family := ""
	for _, a := range d.Authors {
		if a.Role == reference.RoleAuthor || a.Role == "" {
			family = a.FamilyName
			break
		}
	}
	family = keyWord(family)
	if family == "" {
		return fmt.Sprintf("pub%d", d.ID)
	}
	if y := d.Year(); y != 0 {
		return fmt.Sprintf("%s%d-%d", family, y, d.ID)
	}
	return fmt.Sprintf("%s-%d", family, d.ID)
}

// keyWord keeps the letters of s, capitalized like a proper name.
func keyWord(s string) string {
	var letters []rune
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToLower(r))
		}
	}
	if len(letters) == 0 {
		return ""
	}
	letters[0] = unicode.ToUpper(letters[0])
	return string(letters)
}

func yearText(p reference.Publication) string {
	if y := p.Year(); y != 0 {
		return fmt.Sprintf("%d", y)
	}
	return p.DatePublishedText
}

// determineEntryType returns the stored entry type, falling back to a guess
// from the venue name.
func determineEntryType(d reference.PublicationDetail) string {
	if d.EntryType != "" {
		return strings.ToLower(d.EntryType)
	}
	venue := strings.ToLower(d.Venue)

	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}
	if d.ISBN != "" && d.Venue == "" {
		return "book"
	}
	return "article"
}

// formatAuthors formats names with the given role as "Family, Given and ...",
// in position order.
func formatAuthors(authors []reference.PublicationAuthor, role reference.Role) string {
	var formatted []string
	for _, a := range authors {
		if a.Role != role {
			continue
		}
		if a.GivenName != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", a.FamilyName, a.GivenName))
		} else {
			formatted = append(formatted, a.FamilyName)
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// & must be first, before other escapes that might produce &
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
