package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/reference"
)

// selectPublicationFields contains the standard field list for publication SELECTs.
const selectPublicationFields = `id, title, date_published_text, date_published,
	abstract, doi, isbn, volume, issue, pages, series, edition, language,
	entry_type, status, is_primary, container_id`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPublication(s rowScanner) (*reference.Publication, error) {
	var (
		p           reference.Publication
		date        sql.NullString
		status      string
		isPrimary   int
		containerID sql.NullInt64
	)
	err := s.Scan(
		&p.ID, &p.Title, &p.DatePublishedText, &date,
		&p.Abstract, &p.DOI, &p.ISBN, &p.Volume, &p.Issue, &p.Pages,
		&p.Series, &p.Edition, &p.Language,
		&p.EntryType, &status, &isPrimary, &containerID,
	)
	if err != nil {
		return nil, err
	}
	p.DatePublished = parseDate(date)
	p.Status = reference.Status(status)
	p.IsPrimary = isPrimary != 0
	if containerID.Valid {
		id := containerID.Int64
		p.ContainerID = &id
	}
	return &p, nil
}

func getPublication(ctx context.Context, q audit.Querier, id int64) (*reference.Publication, error) {
	row := q.QueryRowContext(ctx, `SELECT `+selectPublicationFields+` FROM publications WHERE id = ?`, id)
	p, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: publication %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading publication %d: %w", id, err)
	}
	return p, nil
}

// GetPublication retrieves a publication by id.
func (d *DB) GetPublication(ctx context.Context, id int64) (*reference.Publication, error) {
	return getPublication(ctx, d.db, id)
}

// GetPublication reads a publication inside the transaction.
func (t *Tx) GetPublication(ctx context.Context, id int64) (*reference.Publication, error) {
	return getPublication(ctx, t.tx, id)
}

// ListPublications returns publications ordered by id.
func (d *DB) ListPublications(ctx context.Context, primaryOnly bool) ([]reference.Publication, error) {
	if primaryOnly {
		return d.listPublications(ctx, `WHERE is_primary = 1`)
	}
	return d.listPublications(ctx, "")
}

// FindPublicationsByDOI returns primary publications whose DOI equals doi,
// ignoring case.
func (d *DB) FindPublicationsByDOI(ctx context.Context, doi string) ([]reference.Publication, error) {
	return d.listPublications(ctx, `WHERE is_primary = 1 AND doi != '' AND lower(doi) = lower(?)`, doi)
}

func (d *DB) listPublications(ctx context.Context, where string, args ...any) ([]reference.Publication, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+selectPublicationFields+` FROM publications `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	var pubs []reference.Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		pubs = append(pubs, *p)
	}
	return pubs, rows.Err()
}

// GetPublicationDetail retrieves a publication with its container and authors.
func (d *DB) GetPublicationDetail(ctx context.Context, id int64) (*reference.PublicationDetail, error) {
	p, err := d.GetPublication(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &reference.PublicationDetail{Publication: *p}

	if p.ContainerID != nil {
		c, err := d.GetContainer(ctx, *p.ContainerID)
		if err != nil {
			return nil, err
		}
		detail.Container = c
		if c.PrimaryName != "" {
			detail.Venue = c.PrimaryName
		} else if len(c.Aliases) > 0 {
			detail.Venue = c.Aliases[0]
		}
	}

	detail.Authors, err = d.PublicationAuthors(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// PublicationAuthors returns the ordered authorship edges of a publication
// with the canonical author names filled in.
func (d *DB) PublicationAuthors(ctx context.Context, publicationID int64) ([]reference.PublicationAuthor, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT pa.publication_id, pa.author_id, pa.role, pa.position, a.family_name, a.given_name
		FROM publication_authors pa
		JOIN authors a ON a.id = pa.author_id
		WHERE pa.publication_id = ?
		ORDER BY pa.role, pa.position, pa.id
	`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("querying publication authors: %w", err)
	}
	defer rows.Close()

	authors := []reference.PublicationAuthor{}
	for rows.Next() {
		var (
			pa   reference.PublicationAuthor
			role string
		)
		if err := rows.Scan(&pa.PublicationID, &pa.AuthorID, &role, &pa.Position, &pa.FamilyName, &pa.GivenName); err != nil {
			return nil, fmt.Errorf("scanning publication author: %w", err)
		}
		pa.Role = reference.Role(role)
		authors = append(authors, pa)
	}
	return authors, rows.Err()
}

// GetContainer retrieves a container with its aliases.
func (d *DB) GetContainer(ctx context.Context, id int64) (*reference.Container, error) {
	var c reference.Container
	err := d.db.QueryRowContext(ctx,
		`SELECT id, type, issn, primary_name FROM containers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Type, &c.ISSN, &c.PrimaryName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: container %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading container %d: %w", id, err)
	}

	aliases, err := d.containerAliases(ctx)
	if err != nil {
		return nil, err
	}
	c.Aliases = aliases[id]
	return &c, nil
}

// ListContainers returns every container with its aliases, ordered by id.
func (d *DB) ListContainers(ctx context.Context) ([]reference.Container, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, type, issn, primary_name FROM containers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying containers: %w", err)
	}
	defer rows.Close()

	var containers []reference.Container
	for rows.Next() {
		var c reference.Container
		if err := rows.Scan(&c.ID, &c.Type, &c.ISSN, &c.PrimaryName); err != nil {
			return nil, fmt.Errorf("scanning container: %w", err)
		}
		containers = append(containers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	aliases, err := d.containerAliases(ctx)
	if err != nil {
		return nil, err
	}
	for i := range containers {
		containers[i].Aliases = aliases[containers[i].ID]
	}
	return containers, nil
}

func (d *DB) containerAliases(ctx context.Context) (map[int64][]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT container_id, name FROM container_aliases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying container aliases: %w", err)
	}
	defer rows.Close()

	aliases := make(map[int64][]string)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning container alias: %w", err)
		}
		aliases[id] = append(aliases[id], name)
	}
	return aliases, rows.Err()
}

// Cites returns the ids of publications cited by publicationID.
func (d *DB) Cites(ctx context.Context, publicationID int64) ([]int64, error) {
	return d.queryIDs(ctx, `SELECT cited_id FROM publication_citations WHERE publication_id = ? ORDER BY cited_id`, publicationID)
}

// CitedBy returns the ids of publications citing publicationID.
func (d *DB) CitedBy(ctx context.Context, publicationID int64) ([]int64, error) {
	return d.queryIDs(ctx, `SELECT publication_id FROM publication_citations WHERE cited_id = ? ORDER BY publication_id`, publicationID)
}

func (d *DB) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RawRecords returns the raw records owned by a publication.
func (d *DB) RawRecords(ctx context.Context, publicationID int64) ([]reference.RawRecord, error) {
	return d.rawRecords(ctx, `WHERE publication_id = ?`, publicationID)
}

// VerifyRawRecords recomputes every stored payload digest and returns the ids
// of records whose payload no longer matches.
func (d *DB) VerifyRawRecords(ctx context.Context) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, payload, digest FROM raw_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying raw records: %w", err)
	}
	defer rows.Close()

	bad := []int64{}
	for rows.Next() {
		var (
			id      int64
			payload string
			digest  string
		)
		if err := rows.Scan(&id, &payload, &digest); err != nil {
			return nil, fmt.Errorf("scanning raw record: %w", err)
		}
		if Digest([]byte(payload)) != digest {
			bad = append(bad, id)
		}
	}
	return bad, rows.Err()
}

func (d *DB) rawRecords(ctx context.Context, where string, args ...any) ([]reference.RawRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, kind, publication_id, payload, digest, created_at FROM raw_records `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying raw records: %w", err)
	}
	defer rows.Close()

	var records []reference.RawRecord
	for rows.Next() {
		var (
			r         reference.RawRecord
			kind      string
			payload   string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &kind, &r.PublicationID, &payload, &r.Digest, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning raw record: %w", err)
		}
		r.Kind = reference.SourceKind(kind)
		if r.Payload, err = reference.DecodePayload(r.Kind, []byte(payload)); err != nil {
			return nil, fmt.Errorf("raw record %d: %w", r.ID, err)
		}
		r.CreatedAt, _ = parseTimestamp(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats summarizes table sizes.
type Stats struct {
	Publications        int `json:"publications"`
	PrimaryPublications int `json:"primary_publications"`
	RawRecords          int `json:"raw_records"`
	RawAuthors          int `json:"raw_authors"`
	UnlinkedRawAuthors  int `json:"unlinked_raw_authors"`
	Authors             int `json:"authors"`
	AuthorAliases       int `json:"author_aliases"`
	Containers          int `json:"containers"`
	Citations           int `json:"citations"`
	OpenConflicts       int `json:"open_conflicts"`
	AuditEntries        int `json:"audit_entries"`
}

// Stats counts the rows of the main tables.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	counts := []struct {
		dst   *int
		query string
	}{
		{&s.Publications, `SELECT COUNT(*) FROM publications`},
		{&s.PrimaryPublications, `SELECT COUNT(*) FROM publications WHERE is_primary = 1`},
		{&s.RawRecords, `SELECT COUNT(*) FROM raw_records`},
		{&s.RawAuthors, `SELECT COUNT(*) FROM raw_authors`},
		{&s.UnlinkedRawAuthors, `SELECT COUNT(*) FROM raw_authors ra
			WHERE NOT EXISTS (SELECT 1 FROM raw_author_links l WHERE l.raw_author_id = ra.id)`},
		{&s.Authors, `SELECT COUNT(*) FROM authors`},
		{&s.AuthorAliases, `SELECT COUNT(*) FROM author_aliases`},
		{&s.Containers, `SELECT COUNT(*) FROM containers`},
		{&s.Citations, `SELECT COUNT(*) FROM publication_citations`},
		{&s.OpenConflicts, `SELECT COUNT(*) FROM author_conflicts WHERE resolved = 0`},
		{&s.AuditEntries, `SELECT COUNT(*) FROM audit_log`},
	}
	for _, c := range counts {
		if err := d.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			name := strings.Fields(c.query)[3]
			return Stats{}, fmt.Errorf("counting %s: %w", name, err)
		}
	}
	return s, nil
}
