package bibtex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpritcha/catalog/internal/reference"
)

const wosExport = `
This text outside entries is ignored.

@string{pnas = "Proc. Natl. Acad. Sci."}

@comment{exported from a citation index}

@Article{ ISI:000226000000001,
Author = {Waldherr, Annie and Murray-Rust, Peter},
Title = {{Cellular automata} in
   immunology},
Journal = pnas # " USA",
Year = {2005},
Month = jan,
Volume = 21,
Pages = "19--25",
DOI = {10.1000/xyz123},
Cited-References = {{[}1] Pappalardo F., 2005, BIOINFORMATICS, V21, P19.
   Abbas AK, 2000, CELLULAR MOL IMMUNOLO.},
}

@preamble{"\newcommand{\noop}[1]{}"}

@book(knuth84,
  title = "The {\TeX}book",
  year = 1984,
)
`

func TestParse_Export(t *testing.T) {
	entries, errs := Parse(strings.NewReader(wosExport))
	require.Empty(t, errs)
	require.Len(t, entries, 2)

	e := entries[0]
	assert.Equal(t, "article", e.Type)
	assert.Equal(t, "ISI:000226000000001", e.Key)
	assert.Equal(t, "Waldherr, Annie and Murray-Rust, Peter", e.Get("author"))
	assert.Equal(t, "{Cellular automata} in\nimmunology", e.Get("Title"))
	assert.Equal(t, "Proc. Natl. Acad. Sci. USA", e.Get("journal"))
	assert.Equal(t, "2005", e.Get("year"))
	assert.Equal(t, "January", e.Get("month"))
	assert.Equal(t, "21", e.Get("volume"))
	assert.Equal(t, "19--25", e.Get("pages"))
	assert.Equal(t, "10.1000/xyz123", e.Get("doi"))
	assert.Equal(t,
		"{[}1] Pappalardo F., 2005, BIOINFORMATICS, V21, P19.\nAbbas AK, 2000, CELLULAR MOL IMMUNOLO.",
		e.Get("cited-references"))

	book := entries[1]
	assert.Equal(t, "book", book.Type)
	assert.Equal(t, "knuth84", book.Key)
	assert.Equal(t, `The {\TeX}book`, book.Get("title"))
	assert.Equal(t, "1984", book.Get("year"))
}

func TestParse_BadEntrySkipped(t *testing.T) {
	src := `
@article{broken,
  title = {unbalanced
@article{good,
  title = {Fine},
}
`
	entries, errs := Parse(strings.NewReader(src))
	require.NotEmpty(t, errs)
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].Key)

	var pe *ParseError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, 3, pe.Line)
}

func TestParse_MissingEquals(t *testing.T) {
	entries, errs := Parse(strings.NewReader(`@misc{k, title {x}}`))
	assert.Empty(t, entries)
	assert.Len(t, errs, 1)
}

func TestParse_Empty(t *testing.T) {
	entries, errs := Parse(strings.NewReader(""))
	assert.Empty(t, entries)
	assert.Empty(t, errs)
}

func TestParse_DuplicateFieldKeepsFirst(t *testing.T) {
	entries, errs := Parse(strings.NewReader(`@misc{k, year = 2001, year = 2002}`))
	require.Empty(t, errs)
	require.Len(t, entries, 1)
	assert.Equal(t, "2001", entries[0].Get("year"))
}

func TestEntry_Map(t *testing.T) {
	e := Entry{Type: "article", Key: "k1", Fields: map[string]string{"title": "T"}}
	m := e.Map()
	assert.Equal(t, "article", m.Get(reference.FieldEntryType))
	assert.Equal(t, "k1", m.Get(reference.FieldKey))
	assert.Equal(t, "T", m.Get(reference.FieldTitle))
}
