package crossref

import "testing"

func work(doi, title string, year int) Work {
	w := Work{DOI: doi, Title: []string{title}}
	if year != 0 {
		w.Issued.Parts = [][]int{{year}}
	}
	return w
}

func TestClassify(t *testing.T) {
	works := []Work{
		work("10.1/a", "Cellular Automata in Immunology", 2005),
		work("10.1/b", "Cellular automata in immunology.", 2007),
		work("10.1/c", "Something else", 2005),
	}

	tests := []struct {
		name  string
		query Query
		kind  OutcomeKind
		dois  []string
	}{
		{"title and year", Query{Title: "cellular automata in immunology", Year: "2005"}, OutcomeSuccess, []string{"10.1/a"}},
		{"title only", Query{Title: "Cellular automata in immunology"}, OutcomeAmbiguous, []string{"10.1/a", "10.1/b"}},
		{"wrong year", Query{Title: "Cellular automata in immunology", Year: "1999"}, OutcomeNotFound, nil},
		{"no title", Query{Author: "Waldherr"}, OutcomeNotFound, nil},
		{"doi", Query{DOI: "10.1/C", Title: "ignored"}, OutcomeSuccess, []string{"10.1/c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query, works)
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %s, want %s", got.Kind, tt.kind)
			}
			var dois []string
			if got.Work != nil {
				dois = append(dois, got.Work.DOI)
			}
			for _, c := range got.Candidates {
				dois = append(dois, c.DOI)
			}
			if len(dois) != len(tt.dois) {
				t.Fatalf("matched %v, want %v", dois, tt.dois)
			}
			for i := range dois {
				if dois[i] != tt.dois[i] {
					t.Errorf("matched %v, want %v", dois, tt.dois)
				}
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := normalizeTitle("  The {DNA}-binding  Protein: A Review. "); got != "the dna binding protein a review" {
		t.Errorf("normalizeTitle() = %q", got)
	}
}
