// Package bibtex reads BibTeX databases into field maps and writes canonical
// publications back out as BibTeX.
package bibtex

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/cpritcha/catalog/internal/reference"
)

// Entry is one parsed BibTeX entry. Field names are lowercase.
type Entry struct {
	Type   string
	Key    string
	Fields map[string]string
}

// Get returns the value of field, or "" if absent.
func (e Entry) Get(field string) string {
	return e.Fields[strings.ToLower(field)]
}

// Map returns the entry as an inbound record, with the entry type and
// citation key stored under their own field names.
func (e Entry) Map() reference.Entry {
	m := make(reference.Entry, len(e.Fields)+2)
	for k, v := range e.Fields {
		m[k] = v
	}
	m[reference.FieldEntryType] = e.Type
	m[reference.FieldKey] = e.Key
	return m
}

// ParseError reports an entry that could not be read.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Month macros predefined by BibTeX styles.
var defaultMacros = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// Parse reads every entry in r. Malformed entries are reported in the error
// slice and skipped; parsing resumes at the next '@'. @comment and @preamble
// blocks are skipped and @string macros are expanded in later values.
func Parse(r io.Reader) ([]Entry, []error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, []error{fmt.Errorf("reading bibtex: %w", err)}
	}

	p := &parser{src: []rune(string(data)), macros: make(map[string]string)}
	for k, v := range defaultMacros {
		p.macros[k] = v
	}

	var (
		entries []Entry
		errs    []error
	)
	for p.seek('@') {
		start := p.pos
		entry, ok, err := p.block()
		if err != nil {
			errs = append(errs, err)
			p.pos = start + 1
			continue
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, errs
}

type parser struct {
	src    []rune
	pos    int
	macros map[string]string
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) line() int {
	n := 1
	for i := 0; i < p.pos && i < len(p.src); i++ {
		if p.src[i] == '\n' {
			n++
		}
	}
	return n
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line(), Msg: fmt.Sprintf(format, args...)}
}

// seek advances to the next occurrence of r and reports whether one exists.
func (p *parser) seek(r rune) bool {
	for !p.eof() {
		if p.src[p.pos] == r {
			return true
		}
		p.pos++
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

// ident reads a run of identifier characters.
func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		r := p.src[p.pos]
		if unicode.IsSpace(r) || strings.ContainsRune(`{}(),=#"@`, r) {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// block parses one '@' block. ok is false for blocks that yield no entry.
func (p *parser) block() (Entry, bool, error) {
	p.pos++ // '@'
	typ := strings.ToLower(p.ident())
	if typ == "" {
		return Entry{}, false, p.errorf("missing entry type after '@'")
	}
	p.skipSpace()

	var closing rune
	switch p.peek() {
	case '{':
		closing = '}'
	case '(':
		closing = ')'
	default:
		return Entry{}, false, p.errorf("expected '{' or '(' after @%s", typ)
	}

	switch typ {
	case "comment", "preamble":
		if closing == '}' {
			_, err := p.braced()
			return Entry{}, false, err
		}
		p.pos++
		if !p.seek(')') {
			return Entry{}, false, p.errorf("unterminated @%s", typ)
		}
		p.pos++
		return Entry{}, false, nil
	case "string":
		p.pos++
		err := p.fields(closing, func(name, value string) {
			p.macros[name] = value
		})
		return Entry{}, false, err
	}

	p.pos++
	p.skipSpace()
	key := strings.TrimSpace(p.until(',', closing))
	entry := Entry{Type: typ, Key: key, Fields: make(map[string]string)}
	err := p.fields(closing, func(name, value string) {
		if _, dup := entry.Fields[name]; !dup {
			entry.Fields[name] = value
		}
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// until reads up to, not including, the first of the stop runes.
func (p *parser) until(stops ...rune) string {
	start := p.pos
	for !p.eof() {
		for _, s := range stops {
			if p.src[p.pos] == s {
				return string(p.src[start:p.pos])
			}
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// fields reads "name = value" pairs up to and including closing.
func (p *parser) fields(closing rune, set func(name, value string)) error {
	for {
		p.skipSpace()
		for p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
		if p.eof() {
			return p.errorf("unterminated entry")
		}
		if p.peek() == closing {
			p.pos++
			return nil
		}

		name := strings.ToLower(p.ident())
		if name == "" {
			return p.errorf("expected field name, found %q", p.peek())
		}
		p.skipSpace()
		if p.peek() != '=' {
			return p.errorf("expected '=' after field %q", name)
		}
		p.pos++

		value, err := p.value()
		if err != nil {
			return err
		}
		set(name, value)
	}
}

// value reads one field value: parts joined by '#'.
func (p *parser) value() (string, error) {
	var b strings.Builder
	for {
		p.skipSpace()
		switch r := p.peek(); {
		case r == '{':
			s, err := p.braced()
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case r == '"':
			s, err := p.quoted()
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case r == 0:
			return "", p.errorf("unexpected end of input in value")
		default:
			word := p.ident()
			if word == "" {
				return "", p.errorf("unexpected %q in value", r)
			}
			if v, ok := p.macros[strings.ToLower(word)]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(word)
			}
		}

		p.skipSpace()
		if p.peek() != '#' {
			return cleanValue(b.String()), nil
		}
		p.pos++
	}
}

// braced reads a balanced {...} group and returns its contents.
func (p *parser) braced() (string, error) {
	start := p.pos
	depth := 0
	for !p.eof() {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos++
				return string(p.src[start+1 : p.pos-1]), nil
			}
		}
		p.pos++
	}
	p.pos = start
	return "", p.errorf("unbalanced braces")
}

// quoted reads a "..." value; quotes inside braces do not terminate it.
func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++
	depth := 0
	for !p.eof() {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				p.pos++
				return string(p.src[start+1 : p.pos-1]), nil
			}
		}
		p.pos++
	}
	p.pos = start
	return "", p.errorf("unterminated quoted value")
}

// cleanValue trims each line and drops blank ones. Line breaks are kept
// since multi-line fields such as cited-references are line oriented.
func cleanValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
