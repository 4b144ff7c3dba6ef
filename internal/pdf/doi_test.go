package pdf

import (
	"path/filepath"
	"testing"
)

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "see doi 10.1093/bioinformatics/bti123 for details", "10.1093/bioinformatics/bti123"},
		{"url", "https://doi.org/10.1038/nature12373.", "10.1038/nature12373"},
		{"trailing paren", "(10.1371/journal.pcbi.1000001)", "10.1371/journal.pcbi.1000001"},
		{"first wins", "10.1000/first and 10.1000/second", "10.1000/first"},
		{"none", "no identifiers here", ""},
		{"short registrant", "10.12/abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindDOI(tt.text); got != tt.want {
				t.Errorf("FindDOI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsHeaderLine(t *testing.T) {
	if !isHeaderLine("Journal of Theoretical Biology 123 (2005)") {
		t.Error("journal running head not detected")
	}
	if isHeaderLine("Cellular automata in immunology revisited") {
		t.Error("title treated as header")
	}
}

func TestExtractDOI_MissingFile(t *testing.T) {
	if _, err := ExtractDOI(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("ExtractDOI() on missing file returned nil error")
	}
}
