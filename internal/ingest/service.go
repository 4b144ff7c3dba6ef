package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/crossref"
	"github.com/cpritcha/catalog/internal/metrics"
	"github.com/cpritcha/catalog/internal/pdf"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/storage"
)

// Errors returned by ingest.
var (
	ErrNoDOI     = errors.New("no DOI found in document")
	ErrNoMatch   = errors.New("lookup found no unique match")
	ErrNoSource  = errors.New("no lookup service configured")
	ErrNoEntries = errors.New("no entries to ingest")
)

// WorkSource resolves bibliographic queries against an external registry.
type WorkSource interface {
	GetWork(ctx context.Context, doi string) (*crossref.Work, error)
	Search(ctx context.Context, q crossref.Query, rows int) ([]crossref.Work, error)
}

// Options describe the command an ingest runs under.
type Options struct {
	Creator string
	Message string
}

// Result summarizes one ingest command.
type Result struct {
	Command audit.Command `json:"command"`
	Entries []Processed   `json:"entries"`
}

// PublicationIDs returns the ids of the primary publications created.
func (r *Result) PublicationIDs() []int64 {
	ids := make([]int64, 0, len(r.Entries))
	for _, e := range r.Entries {
		ids = append(ids, e.PublicationID)
	}
	return ids
}

// Service runs ingest commands against the catalog.
type Service struct {
	db      *storage.DB
	source  WorkSource
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates an ingest service. source may be nil when no external
// lookups are needed.
func NewService(db *storage.DB, source WorkSource, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Service{db: db, source: source, log: log, metrics: m}
}

// IngestEntries stores every entry under a single LOAD command. Any failure
// rolls the whole batch back.
func (s *Service) IngestEntries(ctx context.Context, entries []reference.Entry, opts Options) (*Result, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	res := &Result{}
	cmd := audit.NewCommand(audit.RoleSystemLog, audit.ActionLoad, opts.Creator, opts.Message)
	saved, err := s.db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		for i, entry := range entries {
			p, err := ProcessEntry(ctx, tx, entry, reference.BibTeXEntryPayload{Entry: entry})
			if err != nil {
				return fmt.Errorf("entry %d (%s): %w", i+1, entryLabel(entry), err)
			}
			res.Entries = append(res.Entries, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Command = saved

	s.count(reference.KindBibTeXEntry, res.Entries)
	s.log.Info("ingested entries",
		zap.String("command", saved.PublicID),
		zap.Int("entries", len(res.Entries)),
	)
	return res, nil
}

// IngestWork stores a work returned by a successful lookup as a new primary
// publication backed by an EXTERNAL_LOOKUP_SUCCESS raw record.
func (s *Service) IngestWork(ctx context.Context, w *crossref.Work, q crossref.Query, opts Options) (*Result, error) {
	if existing, err := s.db.FindPublicationsByDOI(ctx, w.DOI); err != nil {
		return nil, err
	} else if len(existing) > 0 {
		s.log.Warn("DOI already catalogued",
			zap.String("doi", w.DOI),
			zap.Int64("publication", existing[0].ID),
		)
	}

	entry := FromWork(*w)
	payload := reference.LookupSuccessPayload{Query: lookupQuery(q), DOI: w.DOI, Work: w.Raw}

	res := &Result{}
	cmd := audit.NewCommand(audit.RoleSystemLog, audit.ActionLoad, opts.Creator, opts.Message)
	saved, err := s.db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		p, err := ProcessEntry(ctx, tx, entry, payload)
		if err != nil {
			return err
		}
		res.Entries = append(res.Entries, *p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Command = saved

	s.count(reference.KindLookupSuccess, res.Entries)
	s.log.Info("ingested work",
		zap.String("command", saved.PublicID),
		zap.String("doi", w.DOI),
		zap.Int64("publication", res.Entries[0].PublicationID),
	)
	return res, nil
}

// IngestPDF extracts a DOI from the document at path, resolves it and
// ingests the resulting work. Without a DOI the first-page title is searched
// instead; only a unique match is ingested.
func (s *Service) IngestPDF(ctx context.Context, path string, opts Options) (*Result, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	doi, err := pdf.ExtractDOI(path)
	if err != nil {
		return nil, err
	}

	var q crossref.Query
	var works []crossref.Work
	if doi != "" {
		q = crossref.Query{DOI: doi}
		w, err := s.source.GetWork(ctx, doi)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", doi, err)
		}
		works = []crossref.Work{*w}
	} else {
		title, err := pdf.ExtractTitle(path)
		if err != nil {
			return nil, err
		}
		if title == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoDOI, path)
		}
		q = crossref.Query{Title: title}
		works, err = s.source.Search(ctx, q, 0)
		if err != nil {
			return nil, fmt.Errorf("searching %q: %w", title, err)
		}
	}

	out := crossref.Classify(q, works)
	s.metrics.Lookups.WithLabelValues(string(out.Kind)).Inc()
	if out.Kind != crossref.OutcomeSuccess {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoMatch, path, out.Kind)
	}

	if opts.Message == "" {
		opts.Message = "ingest " + path
	}
	return s.IngestWork(ctx, out.Work, q, opts)
}

// count updates the ingest counters after a committed command.
func (s *Service) count(kind reference.SourceKind, entries []Processed) {
	for _, e := range entries {
		s.metrics.PublicationsIngested.Add(float64(1 + len(e.CitedIDs)))
		s.metrics.RawRecords.WithLabelValues(string(kind)).Inc()
		if len(e.CitedIDs) > 0 {
			s.metrics.RawRecords.WithLabelValues(string(reference.KindBibTeXRef)).Add(float64(len(e.CitedIDs)))
		}
		s.metrics.RawAuthors.Add(float64(len(e.RawAuthorIDs)))
	}
}

func entryLabel(e reference.Entry) string {
	if key := e.Get(reference.FieldKey); key != "" {
		return key
	}
	title := e.Get(reference.FieldTitle)
	if len(title) > 40 {
		title = title[:40] + "..."
	}
	return strings.TrimSpace(title)
}
