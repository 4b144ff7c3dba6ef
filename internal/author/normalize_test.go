package author

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Abbas AK", "ABBAS AK"},
		{"ABBAS AK", "ABBAS AK"},
		{"Abbas, AK", "ABBAS AK"},
		{"Abbas A. K.", "ABBAS A K"},
		{"{van Vliet}, J.", "VAN VLIET J"},
		{"Waldherr,\nAnnie", "WALDHERR ANNIE"},
		{"Wijermans,\r\nNanda", "WIJERMANS NANDA"},
		{"  Brown,   C.  ", "BROWN C"},
		{"Müller, Jürgen", "MÜLLER JÜRGEN"},
		{"Abbás, A.", "ABBÁS A"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Abbas, Alfred K.",
		"{Pritchard}, C.",
		"de la Cruz,\nMaria",
		"1 WIFI TRACKING SOLU.",
		"   ",
		"Y\u0131ld\u0131z, S\u0131\u0301la",
		"Mu.\u0308ller, H",
		"{a}\u0301bbas",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize not idempotent for %q", in)
	}
}

func TestNormalize_DecomposedInput(t *testing.T) {
	// "e" followed by a combining acute accent composes to "É".
	assert.Equal(t, "ANDR\u00c9 J", Normalize("Andre\u0301 J"))
}

func TestNormalize_ComposesAfterStripping(t *testing.T) {
	// Dotless i uppercases to I, which then composes with the acute accent.
	assert.Equal(t, "YILDIZ S\u00cdLA", Normalize("Y\u0131ld\u0131z, S\u0131\u0301la"))
	// The period between base letter and diaeresis is stripped before composing.
	assert.Equal(t, "M\u00dcLLER H", Normalize("Mu.\u0308ller, H"))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		input string
		want  Name
	}{
		{"Abbas, Alfred K", Name{Family: "ABBAS", Given: "ALFRED K"}},
		{"Pritchard C", Name{Family: "PRITCHARD", Given: "C"}},
		{"Madonna", Name{Family: "MADONNA"}},
		{"", Name{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.input))
		})
	}
}

func TestInitialsForm(t *testing.T) {
	assert.Equal(t, InitialsForm("Abbas, Alfred K"), InitialsForm("Abbas A. K."))
	assert.Equal(t, "ABBAS AK", InitialsForm("Abbas AK"))
	assert.Equal(t, "ABBAS AK", InitialsForm("Abbas, Alfred Kamal"))
	assert.NotEqual(t, InitialsForm("Abbas A"), InitialsForm("Abbas AK"))
	assert.NotEqual(t, InitialsForm("Abbas A"), InitialsForm("Abbas A K"))
	assert.Equal(t, "MADONNA", InitialsForm("Madonna"))
}

func TestLastNameAndInitial(t *testing.T) {
	assert.Equal(t, "ABBAS A", Split("Abbas, Alfred K").LastNameAndInitial())
	assert.Equal(t, "ABBAS A", Split("Abbas AK").LastNameAndInitial())
	assert.Equal(t, "MADONNA", Split("Madonna").LastNameAndInitial())
	assert.Equal(t, "VAN VLIET J", NewName("van Vliet", "Jan").LastNameAndInitial())
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "Pritchard, C", "PRITCHARD C.", true},
		{"initial prefix", "Foo, Baz", "Foo, B.", true},
		{"initial prefix reversed", "Foo, B.", "Foo, Baz", true},
		{"fewer initials", "Abbas A", "Abbas A K", true},
		{"different initials", "Abbas B", "Abbas A K", false},
		{"different family", "Abbas A", "Abbott A", false},
		{"empty family", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similar(Split(tt.a), Split(tt.b))
			if got != tt.want {
				t.Errorf("Similar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

