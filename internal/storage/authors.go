package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/reference"
)

// AliasOwners maps each normalized name to the sorted ids of the canonical
// authors holding it as an alias. Names with no owner are absent.
type AliasOwners map[author.Name][]int64

func aliasOwners(ctx context.Context, q audit.Querier, names []author.Name) (AliasOwners, error) {
	owners := make(AliasOwners)
	for _, n := range names {
		if _, seen := owners[n]; seen {
			continue
		}
		rows, err := q.QueryContext(ctx, `
			SELECT DISTINCT author_id FROM author_aliases
			WHERE family_name = ? AND given_name = ?
			ORDER BY author_id
		`, n.Family, n.Given)
		if err != nil {
			return nil, fmt.Errorf("querying alias owners: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning alias owner: %w", err)
			}
			ids = append(ids, id)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			owners[n] = ids
		}
	}
	return owners, nil
}

// AliasOwners looks up which canonical authors hold each name as an alias.
func (d *DB) AliasOwners(ctx context.Context, names []author.Name) (AliasOwners, error) {
	return aliasOwners(ctx, d.db, names)
}

// AliasOwners looks up alias owners inside the transaction, observing its
// uncommitted writes.
func (t *Tx) AliasOwners(ctx context.Context, names []author.Name) (AliasOwners, error) {
	return aliasOwners(ctx, t.tx, names)
}

// GetAuthor retrieves a canonical author with its aliases.
func (d *DB) GetAuthor(ctx context.Context, id int64) (*reference.Author, error) {
	var (
		a   reference.Author
		typ string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, type, given_name, family_name FROM authors WHERE id = ?`, id,
	).Scan(&a.ID, &typ, &a.GivenName, &a.FamilyName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: author %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading author %d: %w", id, err)
	}
	a.Type = reference.AuthorType(typ)

	aliases, err := d.authorAliases(ctx, `WHERE author_id = ?`, id)
	if err != nil {
		return nil, err
	}
	a.Aliases = aliases[id]
	return &a, nil
}

// ListAuthors returns every canonical author with aliases, ordered by id.
func (d *DB) ListAuthors(ctx context.Context) ([]reference.Author, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, type, given_name, family_name FROM authors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying authors: %w", err)
	}
	defer rows.Close()

	var authors []reference.Author
	for rows.Next() {
		var (
			a   reference.Author
			typ string
		)
		if err := rows.Scan(&a.ID, &typ, &a.GivenName, &a.FamilyName); err != nil {
			return nil, fmt.Errorf("scanning author: %w", err)
		}
		a.Type = reference.AuthorType(typ)
		authors = append(authors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	aliases, err := d.authorAliases(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range authors {
		authors[i].Aliases = aliases[authors[i].ID]
	}
	return authors, nil
}

func (d *DB) authorAliases(ctx context.Context, where string, args ...any) (map[int64][]reference.AuthorAlias, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, author_id, given_name, family_name FROM author_aliases `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying author aliases: %w", err)
	}
	defer rows.Close()

	aliases := make(map[int64][]reference.AuthorAlias)
	for rows.Next() {
		var al reference.AuthorAlias
		if err := rows.Scan(&al.ID, &al.AuthorID, &al.GivenName, &al.FamilyName); err != nil {
			return nil, fmt.Errorf("scanning author alias: %w", err)
		}
		aliases[al.AuthorID] = append(aliases[al.AuthorID], al)
	}
	return aliases, rows.Err()
}

// selectRawAuthorFields joins each raw author to its owning publication.
const selectRawAuthorFields = `ra.id, ra.raw_record_id, rr.publication_id,
	ra.name, ra.family_name, ra.given_name, ra.role, ra.position`

func (d *DB) rawAuthors(ctx context.Context, where string, args ...any) ([]reference.RawAuthor, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectRawAuthorFields+`
		FROM raw_authors ra
		JOIN raw_records rr ON rr.id = ra.raw_record_id
		`+where+`
		ORDER BY ra.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying raw authors: %w", err)
	}
	defer rows.Close()

	var raws []reference.RawAuthor
	for rows.Next() {
		var (
			ra   reference.RawAuthor
			role string
		)
		if err := rows.Scan(&ra.ID, &ra.RawRecordID, &ra.PublicationID,
			&ra.Name, &ra.FamilyName, &ra.GivenName, &role, &ra.Position); err != nil {
			return nil, fmt.Errorf("scanning raw author: %w", err)
		}
		ra.Role = reference.Role(role)
		raws = append(raws, ra)
	}
	return raws, rows.Err()
}

// RawAuthors returns the raw author strings owned by a publication.
func (d *DB) RawAuthors(ctx context.Context, publicationID int64) ([]reference.RawAuthor, error) {
	return d.rawAuthors(ctx, `WHERE rr.publication_id = ?`, publicationID)
}

// PendingRawAuthors returns every raw author of each publication that still
// has at least one raw author without an alias link. Linked siblings are
// included so grouping sees the publication's whole author list.
func (d *DB) PendingRawAuthors(ctx context.Context) ([]reference.RawAuthor, error) {
	return d.rawAuthors(ctx, `
		WHERE rr.publication_id IN (
			SELECT rr2.publication_id
			FROM raw_authors ra2
			JOIN raw_records rr2 ON rr2.id = ra2.raw_record_id
			WHERE NOT EXISTS (SELECT 1 FROM raw_author_links l WHERE l.raw_author_id = ra2.id)
		)`)
}

// RawAuthorLinks maps raw author ids to the alias ids they resolved to.
func (d *DB) RawAuthorLinks(ctx context.Context) (map[int64]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT raw_author_id, alias_id FROM raw_author_links`)
	if err != nil {
		return nil, fmt.Errorf("querying raw author links: %w", err)
	}
	defer rows.Close()

	links := make(map[int64]int64)
	for rows.Next() {
		var rawID, aliasID int64
		if err := rows.Scan(&rawID, &aliasID); err != nil {
			return nil, fmt.Errorf("scanning raw author link: %w", err)
		}
		links[rawID] = aliasID
	}
	return links, rows.Err()
}

// AuthorsOfRawAuthors maps raw author ids to the canonical author they are linked to.
func (d *DB) AuthorsOfRawAuthors(ctx context.Context) (map[int64]int64, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT l.raw_author_id, al.author_id
		FROM raw_author_links l
		JOIN author_aliases al ON al.id = l.alias_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying raw author owners: %w", err)
	}
	defer rows.Close()

	owners := make(map[int64]int64)
	for rows.Next() {
		var rawID, authorID int64
		if err := rows.Scan(&rawID, &authorID); err != nil {
			return nil, fmt.Errorf("scanning raw author owner: %w", err)
		}
		owners[rawID] = authorID
	}
	return owners, rows.Err()
}

// Conflicts returns recorded author conflicts, optionally only unresolved ones.
func (d *DB) Conflicts(ctx context.Context, openOnly bool) ([]reference.AuthorConflict, error) {
	query := `SELECT id, command_id, publication_id, raw_author_ids, author_ids, resolved FROM author_conflicts`
	if openOnly {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := []reference.AuthorConflict{}
	for rows.Next() {
		var (
			c                 reference.AuthorConflict
			rawIDs, authorIDs string
			resolved          int
		)
		if err := rows.Scan(&c.ID, &c.CommandID, &c.PublicationID, &rawIDs, &authorIDs, &resolved); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		if err := json.Unmarshal([]byte(rawIDs), &c.RawAuthorIDs); err != nil {
			return nil, fmt.Errorf("decoding conflict %d raw author ids: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(authorIDs), &c.AuthorIDs); err != nil {
			return nil, fmt.Errorf("decoding conflict %d author ids: %w", c.ID, err)
		}
		c.Resolved = resolved != 0
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// SortedIDs returns the distinct ids of owners across names, ascending.
func (o AliasOwners) SortedIDs(names ...author.Name) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, n := range names {
		for _, id := range o[n] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
