package citeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuessElements(t *testing.T) {
	tests := []struct {
		name          string
		ref           string
		wantAuthor    string
		wantYear      string
		wantContainer string
	}{
		{
			name:       "no year",
			ref:        "1 WIFI TRACKING SOLU.",
			wantAuthor: "1 WIFI TRACKING SOLU.",
		},
		{
			name:          "author before year",
			ref:           "1 Pappalardo F., 2011, BMC CANC UNPUB.",
			wantAuthor:    "1 Pappalardo F.",
			wantYear:      "2011",
			wantContainer: "BMC CANC UNPUB.",
		},
		{
			name:          "year first, trailing volume and page dropped",
			ref:           "2002, INTELLIGENT AGENTS C, V10, P325.",
			wantYear:      "2002",
			wantContainer: "INTELLIGENT AGENTS C",
		},
		{
			name:          "ordinal before year",
			ref:           "3 1999, J THEOR BIOL",
			wantYear:      "1999",
			wantContainer: "J THEOR BIOL",
		},
		{
			name:       "year out of range is not a year",
			ref:        "Smith J, 1492, VOYAGES",
			wantAuthor: "Smith J, 1492, VOYAGES",
		},
		{
			name:       "year embedded in a longer token is not a year",
			ref:        "Smith J, ISO 9001, STANDARDS",
			wantAuthor: "Smith J, ISO 9001, STANDARDS",
		},
		{
			name:       "year with no container",
			ref:        "Axelrod R., 1984.",
			wantAuthor: "Axelrod R.",
			wantYear:   "1984",
		},
		{
			name:       "year followed only by volume",
			ref:        "Axelrod R., 1984, V12",
			wantAuthor: "Axelrod R.",
			wantYear:   "1984",
		},
		{
			name: "empty",
			ref:  "",
		},
		{
			name:       "only commas",
			ref:        ", ,",
			wantAuthor: ", ,",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			author, year, container := GuessElements(tt.ref)
			assert.Equal(t, tt.wantAuthor, author, "author")
			assert.Equal(t, tt.wantYear, year, "year")
			assert.Equal(t, tt.wantContainer, container, "container")
		})
	}
}

func TestParse_Trailers(t *testing.T) {
	e := Parse("Epstein JM, 1996, GROWING ARTIFICIAL SO, V12, P45, DOI 10.7551/mitpress/3374.001.0001")
	assert.Equal(t, "Epstein JM", e.Author)
	assert.Equal(t, "1996", e.Year)
	assert.Equal(t, "GROWING ARTIFICIAL SO", e.Container)
	assert.Equal(t, "12", e.Volume)
	assert.Equal(t, "45", e.Page)
	assert.Equal(t, "10.7551/mitpress/3374.001.0001", e.DOI)
}

func TestParse_VenueStartingWithP(t *testing.T) {
	e := Parse("Grimm V, 2005, PNAS, V102, P1")
	assert.Equal(t, "PNAS", e.Container)
	assert.Equal(t, "102", e.Volume)
	assert.Equal(t, "1", e.Page)
}

func TestSplitLines(t *testing.T) {
	field := "1 Pappalardo F., 2011, BMC CANC UNPUB.\r\n\n  2002, INTELLIGENT AGENTS C, V10, P325.\n"
	assert.Equal(t, []string{
		"1 Pappalardo F., 2011, BMC CANC UNPUB.",
		"2002, INTELLIGENT AGENTS C, V10, P325.",
	}, SplitLines(field))

	assert.Equal(t, []string{"A, 2001, X", "B, 2002, Y"}, SplitLines("A, 2001, X; B, 2002, Y"))
	assert.Empty(t, SplitLines("   "))
}

func TestStripOrdinal(t *testing.T) {
	assert.Equal(t, "Smith J", StripOrdinal("12 Smith J"))
	assert.Equal(t, "Smith J", StripOrdinal("Smith J"))
	assert.Equal(t, "1999", StripOrdinal("1999"))
}
