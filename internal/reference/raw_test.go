package reference

import (
	"errors"
	"testing"
)

func TestDecodePayload_KindIsPreserved(t *testing.T) {
	payloads := []Payload{
		BibTeXEntryPayload{Entry: Entry{"title": "Agents"}},
		BibTeXRefPayload{Line: "2002, INTELLIGENT AGENTS C, V10, P325.", Year: "2002"},
		LookupSuccessPayload{DOI: "10.1/x", Work: []byte(`{"DOI":"10.1/x"}`)},
		LookupAmbiguousPayload{CandidateDOIs: []string{"10.1/a", "10.1/b"}},
		LookupNotFoundPayload{Query: LookupQuery{Title: "Missing"}},
		LookupErrorPayload{Error: "timeout"},
		LookupCandidatePayload{DOI: "10.1/a", Work: []byte(`{}`)},
	}
	if len(payloads) != len(ValidKinds) {
		t.Fatalf("test covers %d payloads, want one per kind (%d)", len(payloads), len(ValidKinds))
	}

	for _, p := range payloads {
		t.Run(string(p.Kind()), func(t *testing.T) {
			data, err := EncodePayload(p)
			if err != nil {
				t.Fatalf("EncodePayload() error = %v", err)
			}
			got, err := DecodePayload(p.Kind(), data)
			if err != nil {
				t.Fatalf("DecodePayload() error = %v", err)
			}
			if got.Kind() != p.Kind() {
				t.Errorf("decoded kind = %s, want %s", got.Kind(), p.Kind())
			}
		})
	}
}

func TestDecodePayload_UnknownKind(t *testing.T) {
	_, err := DecodePayload(SourceKind("CSV_ROW"), []byte(`{}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("DecodePayload() error = %v, want ErrUnknownKind", err)
	}
}

func TestIsLookupFailure(t *testing.T) {
	failures := 0
	for _, k := range ValidKinds {
		if k.IsLookupFailure() {
			failures++
		}
	}
	if failures != 3 {
		t.Errorf("got %d failure kinds, want 3", failures)
	}
	if KindLookupCandidate.IsLookupFailure() {
		t.Error("candidate records are not failures")
	}
}

func TestEntryGet(t *testing.T) {
	e := Entry{"journal": "  Ecology and Society \n"}
	if got := e.Get("Journal"); got != "Ecology and Society" {
		t.Errorf("Get() = %q", got)
	}
	if got := e.Get("booktitle"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := ParseStatus("needs_author_review"); !ok || st != StatusNeedsAuthorReview {
		t.Errorf("ParseStatus() = %q, %v", st, ok)
	}
	if _, ok := ParseStatus("DONE"); ok {
		t.Error("ParseStatus(DONE) should fail")
	}
}
