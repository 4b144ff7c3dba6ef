// Package author provides author name normalization, comparison, and query matching.
package author

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Name is a normalized author name split into family and given parts.
type Name struct {
	Family string `json:"family_name"`
	Given  string `json:"given_name"`
}

// String returns the normalized "FAMILY GIVEN" form.
func (n Name) String() string {
	if n.Given == "" {
		return n.Family
	}
	return n.Family + " " + n.Given
}

// IsZero reports whether the name has no family and no given part.
func (n Name) IsZero() bool {
	return n.Family == "" && n.Given == ""
}

// stripped are removed outright; separators become a single space.
var nameReplacer = strings.NewReplacer(
	".", "",
	"{", "",
	"}", "",
	",", " ",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

// Normalize returns the canonical comparable form of a raw name string.
//
// The result is uppercased, periods and braces are removed, commas and line
// breaks act as separators, and whitespace runs collapse to a single space.
// Composition runs last, since uppercasing and stripping can leave combining
// marks next to new base letters. Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	s := strings.ToUpper(raw)
	s = nameReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(s)
}

// Split normalizes raw and splits it on the first space into family and
// given name. A name with no space is all family name.
func Split(raw string) Name {
	s := Normalize(raw)
	family, given, _ := strings.Cut(s, " ")
	return Name{Family: family, Given: given}
}

// NewName builds a normalized Name from separately supplied parts.
func NewName(family, given string) Name {
	return Name{Family: Normalize(family), Given: Normalize(given)}
}

// Initials reduces a normalized given name to its leading letters.
//
// A token of at most two letters is treated as a run of initials already
// ("AK" yields "AK"); a longer token is a spelled-out name and contributes its
// first letter only ("ALFRED" yields "A").
func Initials(given string) string {
	var b strings.Builder
	for _, tok := range strings.Fields(given) {
		letters := []rune{}
		for _, r := range tok {
			if unicode.IsLetter(r) {
				letters = append(letters, r)
			}
		}
		switch {
		case len(letters) == 0:
			continue
		case len(letters) <= 2:
			b.WriteString(string(letters))
		default:
			b.WriteRune(letters[0])
		}
	}
	return b.String()
}

// InitialsForm returns "FAMILY INITIALS" for a raw name string.
// "Abbas, Alfred K" and "Abbas A. K." share the form "ABBAS AK";
// "Abbas A" has the different form "ABBAS A".
func InitialsForm(raw string) string {
	return Split(raw).InitialsForm()
}

// InitialsForm returns the family name followed by the given-name initials.
func (n Name) InitialsForm() string {
	initials := Initials(n.Given)
	if initials == "" {
		return n.Family
	}
	return n.Family + " " + initials
}

// LastNameAndInitial returns the family name and the first given initial.
func (n Name) LastNameAndInitial() string {
	initials := []rune(Initials(n.Given))
	if len(initials) == 0 {
		return n.Family
	}
	return n.Family + " " + string(initials[0])
}

// Similar reports whether two normalized names plausibly denote the same
// person: they are identical, or they share a family name and one initials
// string is a prefix of the other.
func Similar(a, b Name) bool {
	if a == b {
		return true
	}
	if a.Family == "" || a.Family != b.Family {
		return false
	}
	ia, ib := Initials(a.Given), Initials(b.Given)
	return strings.HasPrefix(ia, ib) || strings.HasPrefix(ib, ia)
}
