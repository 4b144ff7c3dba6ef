// Package citeparse splits free-text cited-reference lines into their
// author, year and container parts.
//
// Lines look roughly like "<ordinal> <AUTHOR>, <YEAR>, <CONTAINER>, V<vol>, P<page>."
// as written by citation-index exports. Parsing is heuristic and total:
// malformed input yields empty parts, never an error.
package citeparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Plausible publication years.
const (
	MinYear = 1600
	MaxYear = 2099
)

// Elements are the parts recovered from one reference line.
type Elements struct {
	Author    string `json:"author"`
	Year      string `json:"year"`
	Container string `json:"container"`
	Volume    string `json:"volume,omitempty"`
	Page      string `json:"page,omitempty"`
	DOI       string `json:"doi,omitempty"`
}

var (
	ordinalPattern = regexp.MustCompile(`^\d+\s+`)
	volumePattern  = regexp.MustCompile(`^V(\d+\S*)$`)
	pagePattern    = regexp.MustCompile(`^P([A-Z]?\d+\S*)$`)
	doiPattern     = regexp.MustCompile(`(?i)^(?:DOI\s*:?\s*)?(10\.\d{4,9}/\S+)$`)
)

// GuessElements returns the author, year and container spans of ref.
//
//	"1 Pappalardo F., 2011, BMC CANC UNPUB." → ("1 Pappalardo F.", "2011", "BMC CANC UNPUB.")
//	"2002, INTELLIGENT AGENTS C, V10, P325." → ("", "2002", "INTELLIGENT AGENTS C")
//	"1 WIFI TRACKING SOLU."                  → ("1 WIFI TRACKING SOLU.", "", "")
func GuessElements(ref string) (author, year, container string) {
	e := Parse(ref)
	return e.Author, e.Year, e.Container
}

// Parse splits ref into Elements.
func Parse(ref string) Elements {
	ref = strings.TrimSpace(ref)
	segments := splitSegments(ref)

	yearIdx := -1
	var year string
	for i, seg := range segments {
		candidate := seg
		if i == 0 {
			candidate = StripOrdinal(seg)
		}
		if y, ok := yearToken(candidate); ok {
			yearIdx, year = i, y
			break
		}
	}

	if yearIdx < 0 {
		return Elements{Author: ref}
	}

	e := Elements{
		Author: strings.Join(segments[:yearIdx], ", "),
		Year:   year,
	}

	rest := segments[yearIdx+1:]
	if len(rest) > 0 && !isTrailer(rest[0]) {
		e.Container = rest[0]
		rest = rest[1:]
	}
	for _, seg := range rest {
		seg = strings.TrimSuffix(seg, ".")
		switch {
		case e.DOI == "" && doiPattern.MatchString(seg):
			e.DOI = doiPattern.FindStringSubmatch(seg)[1]
		case e.Volume == "" && volumePattern.MatchString(seg):
			e.Volume = volumePattern.FindStringSubmatch(seg)[1]
		case e.Page == "" && pagePattern.MatchString(seg):
			e.Page = pagePattern.FindStringSubmatch(seg)[1]
		}
	}
	return e
}

// SplitLines splits a cited-references field into non-empty reference lines.
// Fields without line breaks but with "; " separators are split on those.
func SplitLines(field string) []string {
	field = strings.ReplaceAll(field, "\r\n", "\n")
	var parts []string
	if strings.Contains(field, "\n") {
		parts = strings.Split(field, "\n")
	} else {
		parts = strings.Split(field, "; ")
	}

	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// StripOrdinal removes a leading list number ("12 Smith J" → "Smith J").
func StripOrdinal(s string) string {
	return ordinalPattern.ReplaceAllString(strings.TrimSpace(s), "")
}

// splitSegments splits on commas and trims each segment, dropping empties.
func splitSegments(ref string) []string {
	raw := strings.Split(ref, ",")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// yearToken reports whether seg is a whole four-digit plausible year,
// optionally followed by a period.
func yearToken(seg string) (string, bool) {
	seg = strings.TrimSuffix(seg, ".")
	if len(seg) != 4 {
		return "", false
	}
	n, err := strconv.Atoi(seg)
	if err != nil || n < MinYear || n > MaxYear {
		return "", false
	}
	return seg, true
}

// isTrailer reports whether seg is a volume, page or DOI segment rather than a venue.
func isTrailer(seg string) bool {
	seg = strings.TrimSuffix(seg, ".")
	return volumePattern.MatchString(seg) || pagePattern.MatchString(seg) || doiPattern.MatchString(seg)
}
