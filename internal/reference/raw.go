package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceKind tags where a raw record came from and how it was obtained.
type SourceKind string

const (
	KindBibTeXEntry         SourceKind = "BIBTEX_ENTRY"
	KindBibTeXRef           SourceKind = "BIBTEX_REF"
	KindLookupSuccess       SourceKind = "EXTERNAL_LOOKUP_SUCCESS"
	KindLookupFailAmbiguous SourceKind = "EXTERNAL_LOOKUP_FAIL_AMBIGUOUS"
	KindLookupFailNotFound  SourceKind = "EXTERNAL_LOOKUP_FAIL_NOT_FOUND"
	KindLookupFailOther     SourceKind = "EXTERNAL_LOOKUP_FAIL_OTHER"
	KindLookupCandidate     SourceKind = "EXTERNAL_LOOKUP_CANDIDATE"
)

// ValidKinds lists every source kind.
var ValidKinds = []SourceKind{
	KindBibTeXEntry, KindBibTeXRef,
	KindLookupSuccess, KindLookupFailAmbiguous, KindLookupFailNotFound,
	KindLookupFailOther, KindLookupCandidate,
}

// ErrUnknownKind is returned when a raw record carries an unrecognized kind.
var ErrUnknownKind = errors.New("unknown source kind")

// IsLookupFailure reports whether k records a failed external lookup.
func (k SourceKind) IsLookupFailure() bool {
	switch k {
	case KindLookupFailAmbiguous, KindLookupFailNotFound, KindLookupFailOther:
		return true
	}
	return false
}

// Standard inbound entry field names.
const (
	FieldEntryType       = "entrytype"
	FieldKey             = "key"
	FieldAuthor          = "author"
	FieldEditor          = "editor"
	FieldTitle           = "title"
	FieldJournal         = "journal"
	FieldBooktitle       = "booktitle"
	FieldYear            = "year"
	FieldDOI             = "doi"
	FieldAbstract        = "abstract"
	FieldISSN            = "issn"
	FieldISBN            = "isbn"
	FieldVolume          = "volume"
	FieldNumber          = "number"
	FieldPages           = "pages"
	FieldSeries          = "series"
	FieldEdition         = "edition"
	FieldLanguage        = "language"
	FieldCitedReferences = "cited-references"
)

// Entry is one inbound structured source record: field name → text.
// Field names are lowercase.
type Entry map[string]string

// Get returns the trimmed value of field, or "" if absent.
func (e Entry) Get(field string) string {
	return strings.TrimSpace(e[strings.ToLower(field)])
}

// Payload is the kind-specific content of a raw record. The set of
// implementations is closed; each one belongs to exactly one SourceKind.
type Payload interface {
	Kind() SourceKind
	payload()
}

// BibTeXEntryPayload holds a full source entry.
type BibTeXEntryPayload struct {
	Entry Entry `json:"entry"`
}

// BibTeXRefPayload holds one cited-reference line and the fields parsed from it.
type BibTeXRefPayload struct {
	Line      string `json:"line"`
	Author    string `json:"author"`
	Year      string `json:"year"`
	Container string `json:"container"`
	Volume    string `json:"volume,omitempty"`
	Page      string `json:"page,omitempty"`
	DOI       string `json:"doi,omitempty"`
}

// LookupQuery is what was sent to the external lookup service.
type LookupQuery struct {
	DOI    string `json:"doi,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Year   string `json:"year,omitempty"`
}

// LookupSuccessPayload holds the unique record returned by a lookup.
type LookupSuccessPayload struct {
	Query LookupQuery     `json:"query"`
	DOI   string          `json:"doi"`
	Work  json.RawMessage `json:"work"`
}

// LookupAmbiguousPayload records a lookup that returned several equally good matches.
type LookupAmbiguousPayload struct {
	Query         LookupQuery `json:"query"`
	CandidateDOIs []string    `json:"candidate_dois"`
}

// LookupNotFoundPayload records a lookup with no acceptable match.
type LookupNotFoundPayload struct {
	Query LookupQuery `json:"query"`
}

// LookupErrorPayload records a lookup that failed for any other reason.
type LookupErrorPayload struct {
	Query LookupQuery `json:"query"`
	Error string      `json:"error"`
}

// LookupCandidatePayload holds one candidate of an ambiguous lookup.
type LookupCandidatePayload struct {
	Query LookupQuery     `json:"query"`
	DOI   string          `json:"doi"`
	Work  json.RawMessage `json:"work"`
}

func (BibTeXEntryPayload) Kind() SourceKind     { return KindBibTeXEntry }
func (BibTeXRefPayload) Kind() SourceKind       { return KindBibTeXRef }
func (LookupSuccessPayload) Kind() SourceKind   { return KindLookupSuccess }
func (LookupAmbiguousPayload) Kind() SourceKind { return KindLookupFailAmbiguous }
func (LookupNotFoundPayload) Kind() SourceKind  { return KindLookupFailNotFound }
func (LookupErrorPayload) Kind() SourceKind     { return KindLookupFailOther }
func (LookupCandidatePayload) Kind() SourceKind { return KindLookupCandidate }

func (BibTeXEntryPayload) payload()     {}
func (BibTeXRefPayload) payload()       {}
func (LookupSuccessPayload) payload()   {}
func (LookupAmbiguousPayload) payload() {}
func (LookupNotFoundPayload) payload()  {}
func (LookupErrorPayload) payload()     {}
func (LookupCandidatePayload) payload() {}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encoding payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", p.Kind(), err)
	}
	return data, nil
}

// DecodePayload deserializes a stored payload of the given kind.
func DecodePayload(kind SourceKind, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindBibTeXEntry:
		var v BibTeXEntryPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindBibTeXRef:
		var v BibTeXRefPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindLookupSuccess:
		var v LookupSuccessPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindLookupFailAmbiguous:
		var v LookupAmbiguousPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindLookupFailNotFound:
		var v LookupNotFoundPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindLookupFailOther:
		var v LookupErrorPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindLookupCandidate:
		var v LookupCandidatePayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", kind, err)
	}
	return p, nil
}

// RawRecord is an immutable snapshot of one source record.
type RawRecord struct {
	ID            int64      `json:"id"`
	Kind          SourceKind `json:"kind"`
	PublicationID int64      `json:"publication_id"`
	Payload       Payload    `json:"payload"`
	Digest        string     `json:"digest"` // blake2b-256 of the encoded payload
	CreatedAt     time.Time  `json:"created_at"`
}
