package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/crossref"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/storage"
)

// LookupResult reports what a lookup recorded for a publication.
type LookupResult struct {
	Command       audit.Command        `json:"command"`
	PublicationID int64                `json:"publication_id"`
	Kind          reference.SourceKind `json:"kind"`
	RawRecordIDs  []int64              `json:"raw_record_ids"`
	RawAuthorIDs  []int64              `json:"raw_author_ids,omitempty"`
	CandidateDOIs []string             `json:"candidate_dois,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// Lookup queries the external registry for an existing publication and
// records the outcome as raw records owned by it. Failures of the lookup
// itself are recorded, not returned; only catalog errors and cancellation
// are returned.
func (s *Service) Lookup(ctx context.Context, publicationID int64, opts Options) (*LookupResult, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	detail, err := s.db.GetPublicationDetail(ctx, publicationID)
	if err != nil {
		return nil, err
	}
	q, err := s.buildQuery(ctx, detail)
	if err != nil {
		return nil, err
	}

	// The network call happens outside the transaction.
	out, lookupErr := s.resolve(ctx, q)
	if lookupErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res := &LookupResult{PublicationID: publicationID}
	query := lookupQuery(q)

	if opts.Message == "" {
		opts.Message = fmt.Sprintf("lookup publication %d", publicationID)
	}
	cmd := audit.NewCommand(audit.RoleSystemLog, audit.ActionLoad, opts.Creator, opts.Message)
	saved, err := s.db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		var payloads []reference.Payload
		switch {
		case lookupErr != nil:
			res.Error = lookupErr.Error()
			payloads = append(payloads, reference.LookupErrorPayload{Query: query, Error: res.Error})
		case out.Kind == crossref.OutcomeSuccess:
			payloads = append(payloads, reference.LookupSuccessPayload{Query: query, DOI: out.Work.DOI, Work: out.Work.Raw})
		case out.Kind == crossref.OutcomeAmbiguous:
			for _, c := range out.Candidates {
				res.CandidateDOIs = append(res.CandidateDOIs, c.DOI)
			}
			payloads = append(payloads, reference.LookupAmbiguousPayload{Query: query, CandidateDOIs: res.CandidateDOIs})
			for _, c := range out.Candidates {
				payloads = append(payloads, reference.LookupCandidatePayload{Query: query, DOI: c.DOI, Work: c.Raw})
			}
		default:
			payloads = append(payloads, reference.LookupNotFoundPayload{Query: query})
		}
		res.Kind = payloads[0].Kind()

		for _, p := range payloads {
			id, err := tx.CreateRawRecord(ctx, publicationID, p)
			if err != nil {
				return fmt.Errorf("creating %s raw record: %w", p.Kind(), err)
			}
			res.RawRecordIDs = append(res.RawRecordIDs, id)
		}

		if res.Kind == reference.KindLookupSuccess {
			for _, c := range []struct {
				list []crossref.Contributor
				role reference.Role
			}{
				{out.Work.Author, reference.RoleAuthor},
				{out.Work.Editor, reference.RoleEditor},
			} {
				ids, err := makeRawAuthors(ctx, tx, res.RawRecordIDs[0], contributorNames(c.list), c.role)
				if err != nil {
					return err
				}
				res.RawAuthorIDs = append(res.RawAuthorIDs, ids...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Command = saved

	s.metrics.Lookups.WithLabelValues(outcomeLabel(res.Kind)).Inc()
	s.metrics.RawRecords.WithLabelValues(string(res.Kind)).Inc()
	if n := len(res.RawRecordIDs) - 1; n > 0 {
		s.metrics.RawRecords.WithLabelValues(string(reference.KindLookupCandidate)).Add(float64(n))
	}
	s.metrics.RawAuthors.Add(float64(len(res.RawAuthorIDs)))

	fields := []zap.Field{
		zap.String("command", saved.PublicID),
		zap.Int64("publication", publicationID),
		zap.String("kind", string(res.Kind)),
	}
	if res.Error != "" {
		s.log.Warn("lookup failed", append(fields, zap.String("error", res.Error))...)
	} else {
		s.log.Info("lookup recorded", fields...)
	}
	return res, nil
}

// resolve runs the external query. A missing DOI or an empty search is a
// not-found outcome rather than an error.
func (s *Service) resolve(ctx context.Context, q crossref.Query) (crossref.Outcome, error) {
	var works []crossref.Work
	if q.DOI != "" {
		w, err := s.source.GetWork(ctx, q.DOI)
		switch {
		case crossref.IsNotFound(err):
			return crossref.Outcome{Kind: crossref.OutcomeNotFound}, nil
		case err != nil:
			return crossref.Outcome{}, err
		}
		works = []crossref.Work{*w}
	} else {
		var err error
		works, err = s.source.Search(ctx, q, 0)
		switch {
		case crossref.IsNotFound(err):
			return crossref.Outcome{Kind: crossref.OutcomeNotFound}, nil
		case err != nil:
			return crossref.Outcome{}, err
		}
	}
	return crossref.Classify(q, works), nil
}

// buildQuery derives the lookup query from the publication: its DOI when
// known, otherwise title, year and the first author's family name.
func (s *Service) buildQuery(ctx context.Context, d *reference.PublicationDetail) (crossref.Query, error) {
	q := crossref.Query{
		DOI:   d.DOI,
		Title: d.Title,
		Year:  d.DatePublishedText,
	}
	for _, pa := range d.Authors {
		if pa.Role == reference.RoleAuthor && pa.FamilyName != "" {
			q.Author = pa.FamilyName
			return q, nil
		}
	}
	raws, err := s.db.RawAuthors(ctx, d.ID)
	if err != nil {
		return q, err
	}
	for _, ra := range raws {
		if ra.Role == reference.RoleAuthor && ra.FamilyName != "" {
			q.Author = ra.FamilyName
			break
		}
	}
	return q, nil
}

func lookupQuery(q crossref.Query) reference.LookupQuery {
	return reference.LookupQuery{DOI: q.DOI, Title: q.Title, Author: q.Author, Year: q.Year}
}

func outcomeLabel(k reference.SourceKind) string {
	switch k {
	case reference.KindLookupSuccess:
		return string(crossref.OutcomeSuccess)
	case reference.KindLookupFailAmbiguous:
		return string(crossref.OutcomeAmbiguous)
	case reference.KindLookupFailNotFound:
		return string(crossref.OutcomeNotFound)
	default:
		return "error"
	}
}

func contributorNames(cs []crossref.Contributor) []string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.String())
	}
	return names
}

// FromWork converts a registry work into an inbound entry.
func FromWork(w crossref.Work) reference.Entry {
	e := reference.Entry{
		reference.FieldEntryType: entryTypeOf(w.Type),
		reference.FieldTitle:     w.FirstTitle(),
		reference.FieldAuthor:    w.AuthorList(),
		reference.FieldEditor:    w.EditorList(),
		reference.FieldYear:      w.YearText(),
		reference.FieldDOI:       crossref.NormalizeDOI(w.DOI),
		reference.FieldVolume:    w.Volume,
		reference.FieldNumber:    w.Issue,
		reference.FieldPages:     w.Page,
		reference.FieldAbstract:  w.Abstract,
		reference.FieldLanguage:  w.Language,
	}
	switch e[reference.FieldEntryType] {
	case "inproceedings", "incollection":
		e[reference.FieldBooktitle] = w.FirstContainer()
	default:
		e[reference.FieldJournal] = w.FirstContainer()
	}
	if len(w.ISSN) > 0 {
		e[reference.FieldISSN] = w.ISSN[0]
	}
	if len(w.ISBN) > 0 {
		e[reference.FieldISBN] = w.ISBN[0]
	}
	for k, v := range e {
		if strings.TrimSpace(v) == "" {
			delete(e, k)
		}
	}
	return e
}

func entryTypeOf(crossrefType string) string {
	switch crossrefType {
	case "journal-article":
		return "article"
	case "proceedings-article":
		return "inproceedings"
	case "book", "monograph", "edited-book":
		return "book"
	case "book-chapter", "book-section", "book-part":
		return "incollection"
	case "dissertation":
		return "phdthesis"
	case "report":
		return "techreport"
	default:
		return "misc"
	}
}
