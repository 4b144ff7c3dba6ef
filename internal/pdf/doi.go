// Package pdf pulls identifying metadata out of PDF files.
package pdf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// searchPages is how many leading pages are scanned; the DOI and title are
// almost always on the first page.
const searchPages = 3

// doiPattern matches 10.XXXX/... where XXXX is 4 to 9 digits.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// ExtractDOI returns the first DOI printed on the leading pages of a PDF, or
// "" if there is none.
func ExtractDOI(filePath string) (string, error) {
	pages, err := leadingText(filePath, searchPages)
	if err != nil {
		return "", err
	}
	for _, text := range pages {
		if doi := FindDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", nil
}

// ExtractTitle guesses the title as the first substantial line of page one.
func ExtractTitle(filePath string) (string, error) {
	pages, err := leadingText(filePath, 1)
	if err != nil || len(pages) == 0 {
		return "", err
	}
	for _, line := range strings.Split(pages[0], "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line, nil
		}
	}
	return "", nil
}

// leadingText returns the plain text of up to n leading pages. Pages that
// fail to decode are skipped.
func leadingText(filePath string, n int) ([]string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	if r.NumPage() < n {
		n = r.NumPage()
	}
	var pages []string
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// FindDOI returns the first well-formed DOI in text, or "".
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}

// isHeaderLine reports lines that look like running headers or footers.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"),
		strings.Contains(lower, "copyright"),
		strings.Contains(lower, "volume") && strings.Contains(lower, "issue"),
		strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}
