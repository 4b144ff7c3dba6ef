package crossref

import (
	"strings"
	"unicode"
)

// OutcomeKind is the result class of a lookup.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
	OutcomeNotFound  OutcomeKind = "not_found"
)

// Outcome is a classified lookup result. Work is set on success; Candidates
// holds every acceptable match when the result is ambiguous.
type Outcome struct {
	Kind       OutcomeKind
	Work       *Work
	Candidates []Work
}

// Classify picks the works that match q. A work matches when its normalized
// title equals the query's and, if both years are known, the years agree.
// A query carrying a DOI matches on DOI alone.
func Classify(q Query, works []Work) Outcome {
	var matches []Work
	doi := NormalizeDOI(q.DOI)
	title := normalizeTitle(q.Title)
	for _, w := range works {
		if doi != "" {
			if NormalizeDOI(w.DOI) == doi {
				matches = append(matches, w)
			}
			continue
		}
		if title == "" || normalizeTitle(w.FirstTitle()) != title {
			continue
		}
		if q.Year != "" && w.YearText() != "" && q.Year != w.YearText() {
			continue
		}
		matches = append(matches, w)
	}

	switch len(matches) {
	case 0:
		return Outcome{Kind: OutcomeNotFound}
	case 1:
		return Outcome{Kind: OutcomeSuccess, Work: &matches[0]}
	default:
		return Outcome{Kind: OutcomeAmbiguous, Candidates: matches}
	}
}

// normalizeTitle lowercases and keeps letters and digits, with single spaces
// between words.
func normalizeTitle(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
