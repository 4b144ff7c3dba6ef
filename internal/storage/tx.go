package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/reference"
	"golang.org/x/crypto/blake2b"
)

// Tx is an open transaction scoped to one audit command. Every write goes
// through the command's audit recorder.
type Tx struct {
	tx  audit.Querier
	rec *audit.Recorder
}

// Command returns the audit command this transaction writes under.
func (t *Tx) Command() audit.Command {
	return t.rec.Command()
}

// CreateContainer inserts a container.
func (t *Tx) CreateContainer(ctx context.Context, c reference.Container) (int64, error) {
	return t.rec.Create(ctx, "containers", audit.Values{
		"type":         c.Type,
		"issn":         c.ISSN,
		"primary_name": c.PrimaryName,
	})
}

// AddContainerAlias attaches a name to a container. Existing aliases are reused.
func (t *Tx) AddContainerAlias(ctx context.Context, containerID int64, name string) (int64, error) {
	id, _, err := t.rec.GetOrCreate(ctx, "container_aliases",
		audit.Values{"container_id": containerID, "name": name}, nil)
	return id, err
}

// CreatePublication inserts a publication.
func (t *Tx) CreatePublication(ctx context.Context, p reference.Publication) (int64, error) {
	status := p.Status
	if status == "" {
		status = reference.StatusUntagged
	}
	return t.rec.Create(ctx, "publications", audit.Values{
		"title":               p.Title,
		"date_published_text": p.DatePublishedText,
		"date_published":      formatDate(p.DatePublished),
		"abstract":            p.Abstract,
		"doi":                 p.DOI,
		"isbn":                p.ISBN,
		"volume":              p.Volume,
		"issue":               p.Issue,
		"pages":               p.Pages,
		"series":              p.Series,
		"edition":             p.Edition,
		"language":            p.Language,
		"entry_type":          p.EntryType,
		"status":              string(status),
		"is_primary":          boolInt(p.IsPrimary),
		"container_id":        nullableInt64(p.ContainerID),
	})
}

// CreateRawRecord stores an immutable source snapshot owned by a publication.
func (t *Tx) CreateRawRecord(ctx context.Context, publicationID int64, payload reference.Payload) (int64, error) {
	data, err := reference.EncodePayload(payload)
	if err != nil {
		return 0, err
	}
	return t.rec.Create(ctx, "raw_records", audit.Values{
		"kind":           string(payload.Kind()),
		"publication_id": publicationID,
		"payload":        string(data),
		"digest":         Digest(data),
		"created_at":     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// CreateRawAuthor stores one author string of a raw record.
func (t *Tx) CreateRawAuthor(ctx context.Context, ra reference.RawAuthor) (int64, error) {
	role := ra.Role
	if role == "" {
		role = reference.RoleAuthor
	}
	return t.rec.Create(ctx, "raw_authors", audit.Values{
		"raw_record_id": ra.RawRecordID,
		"name":          ra.Name,
		"family_name":   ra.FamilyName,
		"given_name":    ra.GivenName,
		"role":          string(role),
		"position":      ra.Position,
	})
}

// CreateAuthor inserts a canonical author.
func (t *Tx) CreateAuthor(ctx context.Context, a reference.Author) (int64, error) {
	typ := a.Type
	if typ == "" {
		typ = reference.AuthorIndividual
	}
	return t.rec.Create(ctx, "authors", audit.Values{
		"type":        string(typ),
		"given_name":  a.GivenName,
		"family_name": a.FamilyName,
	})
}

// AttachAlias attaches a normalized name to an author, reusing an identical
// existing alias of that author.
func (t *Tx) AttachAlias(ctx context.Context, authorID int64, family, given string) (int64, bool, error) {
	return t.rec.GetOrCreate(ctx, "author_aliases", audit.Values{
		"author_id":   authorID,
		"family_name": family,
		"given_name":  given,
	}, nil)
}

// LinkRawAuthor records which alias a raw author string resolved to.
// Linking an already linked raw author is a no-op.
func (t *Tx) LinkRawAuthor(ctx context.Context, rawAuthorID, aliasID int64) error {
	_, _, err := t.rec.GetOrCreate(ctx, "raw_author_links",
		audit.Values{"raw_author_id": rawAuthorID},
		audit.Values{"alias_id": aliasID})
	return err
}

// AddPublicationAuthor adds an ordered, typed authorship edge if missing.
func (t *Tx) AddPublicationAuthor(ctx context.Context, pa reference.PublicationAuthor) error {
	role := pa.Role
	if role == "" {
		role = reference.RoleAuthor
	}
	_, _, err := t.rec.GetOrCreate(ctx, "publication_authors", audit.Values{
		"publication_id": pa.PublicationID,
		"author_id":      pa.AuthorID,
		"role":           string(role),
	}, audit.Values{"position": pa.Position})
	return err
}

// AddCitation adds a directed citation edge if missing.
func (t *Tx) AddCitation(ctx context.Context, publicationID, citedID int64) error {
	_, _, err := t.rec.GetOrCreate(ctx, "publication_citations", audit.Values{
		"publication_id": publicationID,
		"cited_id":       citedID,
	}, nil)
	return err
}

// RecordConflict persists an unresolved author-matching conflict.
func (t *Tx) RecordConflict(ctx context.Context, c reference.AuthorConflict) (int64, error) {
	rawIDs, err := json.Marshal(c.RawAuthorIDs)
	if err != nil {
		return 0, fmt.Errorf("encoding raw author ids: %w", err)
	}
	authorIDs, err := json.Marshal(c.AuthorIDs)
	if err != nil {
		return 0, fmt.Errorf("encoding author ids: %w", err)
	}
	return t.rec.Create(ctx, "author_conflicts", audit.Values{
		"command_id":     t.rec.Command().ID,
		"publication_id": c.PublicationID,
		"raw_author_ids": string(rawIDs),
		"author_ids":     string(authorIDs),
	})
}

// HasOpenConflict reports whether an unresolved conflict already covers
// exactly these raw authors of the publication.
func (t *Tx) HasOpenConflict(ctx context.Context, publicationID int64, rawAuthorIDs []int64) (bool, error) {
	rawIDs, err := json.Marshal(rawAuthorIDs)
	if err != nil {
		return false, fmt.Errorf("encoding raw author ids: %w", err)
	}
	var n int
	err = t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM author_conflicts
		WHERE publication_id = ? AND raw_author_ids = ? AND resolved = 0
	`, publicationID, string(rawIDs)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying conflicts: %w", err)
	}
	return n > 0, nil
}

// ResolveConflict marks a conflict as handled.
func (t *Tx) ResolveConflict(ctx context.Context, id int64) error {
	return t.rec.Update(ctx, "author_conflicts", id, audit.Values{"resolved": 1})
}

// SetStatus changes a publication's review status.
func (t *Tx) SetStatus(ctx context.Context, publicationID int64, status reference.Status) error {
	return t.rec.Update(ctx, "publications", publicationID, audit.Values{"status": string(status)})
}

// MarkNonPrimary flags a publication as superseded by another record.
func (t *Tx) MarkNonPrimary(ctx context.Context, publicationID int64) error {
	return t.rec.Update(ctx, "publications", publicationID, audit.Values{"is_primary": 0})
}

// RepointPublication moves every authorship edge, citation edge and raw
// record of from onto to. Edges that would duplicate one already on to are
// deleted instead of moved. Each touched row gets its own log entry.
func (t *Tx) RepointPublication(ctx context.Context, from, to int64) error {
	if from == to {
		return nil
	}

	// Authorship: drop rows whose (author, role) already exists on the survivor.
	if _, err := t.rec.DeleteWhere(ctx, "publication_authors",
		`publication_id = ? AND EXISTS (
			SELECT 1 FROM publication_authors s
			WHERE s.publication_id = ? AND s.author_id = publication_authors.author_id
			AND s.role = publication_authors.role)`, from, to); err != nil {
		return fmt.Errorf("dropping duplicate authorship: %w", err)
	}
	if _, err := t.rec.UpdateWhere(ctx, "publication_authors", "publication_id = ?",
		[]any{from}, audit.Values{"publication_id": to}); err != nil {
		return fmt.Errorf("moving authorship: %w", err)
	}

	// Outgoing citations.
	if _, err := t.rec.DeleteWhere(ctx, "publication_citations",
		`publication_id = ? AND (cited_id = ? OR EXISTS (
			SELECT 1 FROM publication_citations s
			WHERE s.publication_id = ? AND s.cited_id = publication_citations.cited_id))`,
		from, to, to); err != nil {
		return fmt.Errorf("dropping duplicate citations: %w", err)
	}
	if _, err := t.rec.UpdateWhere(ctx, "publication_citations", "publication_id = ?",
		[]any{from}, audit.Values{"publication_id": to}); err != nil {
		return fmt.Errorf("moving citations: %w", err)
	}

	// Incoming citations.
	if _, err := t.rec.DeleteWhere(ctx, "publication_citations",
		`cited_id = ? AND (publication_id = ? OR EXISTS (
			SELECT 1 FROM publication_citations s
			WHERE s.cited_id = ? AND s.publication_id = publication_citations.publication_id))`,
		from, to, to); err != nil {
		return fmt.Errorf("dropping duplicate citations: %w", err)
	}
	if _, err := t.rec.UpdateWhere(ctx, "publication_citations", "cited_id = ?",
		[]any{from}, audit.Values{"cited_id": to}); err != nil {
		return fmt.Errorf("moving cited-by edges: %w", err)
	}

	if _, err := t.rec.UpdateWhere(ctx, "raw_records", "publication_id = ?",
		[]any{from}, audit.Values{"publication_id": to}); err != nil {
		return fmt.Errorf("moving raw records: %w", err)
	}
	return nil
}

// Digest returns the hex blake2b-256 digest of an encoded payload.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
