package author

import (
	"strings"
)

// Query represents a parsed author search query.
type Query struct {
	Given  string // Normalized given name (may be empty for family-only queries)
	Family string // Normalized family name (required)
}

// ParseQuery parses an author search string into a structured Query.
//
// Supported formats:
//   - "Yu"           → family="YU" (single word = family name only)
//   - "Timothy Yu"   → given="TIMOTHY", family="YU" (space-separated = Given Family)
//   - "Yu, Timothy"  → given="TIMOTHY", family="YU" (comma = Family, Given)
//
// Both parts are normalized, so matching is case and punctuation insensitive.
func ParseQuery(input string) Query {
	input = strings.TrimSpace(input)
	if input == "" {
		return Query{}
	}

	// Check for comma format: "Family, Given"
	if idx := strings.Index(input, ","); idx > 0 {
		return Query{
			Family: Normalize(input[:idx]),
			Given:  Normalize(input[idx+1:]),
		}
	}

	parts := strings.Fields(input)
	if len(parts) == 1 {
		return Query{Family: Normalize(parts[0])}
	}

	// "Timothy C Yu" → given="TIMOTHY C", family="YU"
	return Query{
		Family: Normalize(parts[len(parts)-1]),
		Given:  Normalize(strings.Join(parts[:len(parts)-1], " ")),
	}
}

// Matches checks if the query matches a normalized name.
//
// Matching rules:
//   - Family name: exact match on the normalized form (required)
//   - Given name: prefix match on the normalized form (if query has one)
//
// This lets "Tim Yu" match "YU TIMOTHY C" while "Yu" never matches "YUJIA".
func (q Query) Matches(n Name) bool {
	if q.Family == "" || q.Family != n.Family {
		return false
	}
	if q.Given == "" {
		return true
	}
	return strings.HasPrefix(n.Given, q.Given)
}

// MatchesAny checks if the query matches any name in the list.
func (q Query) MatchesAny(names []Name) bool {
	for _, n := range names {
		if q.Matches(n) {
			return true
		}
	}
	return false
}

// AllMatch checks if all queries match at least one name each.
func AllMatch(queries []Query, names []Name) bool {
	for _, q := range queries {
		if !q.MatchesAny(names) {
			return false
		}
	}
	return true
}
