package linkage

import (
	"context"
	"fmt"
	"slices"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/storage"
)

// Options describe the command a linkage write runs under.
type Options struct {
	Creator string
	Message string
	DryRun  bool
}

// Applied summarizes a written plan.
type Applied struct {
	Command          audit.Command `json:"command"`
	AuthorsCreated   []int64       `json:"authors_created"`
	AliasesAttached  int           `json:"aliases_attached"`
	RawAuthorsLinked int           `json:"raw_authors_linked"`
	Conflicts        []int64       `json:"conflicts"`
	ConflictsKnown   int           `json:"conflicts_known"`
}

// Apply writes plan in one MERGE command. Before writing, the alias owners
// of every name in the plan are read again inside the transaction; if they
// differ from the snapshot the plan was made against the batch fails with
// storage.ErrAliasCollision and nothing is written.
func Apply(ctx context.Context, db *storage.DB, plan Plan, opts Options) (*Applied, error) {
	if opts.Message == "" {
		opts.Message = "link authors"
	}
	cmd := audit.NewCommand(audit.RoleSystemLog, audit.ActionMerge, opts.Creator, opts.Message)

	applied := &Applied{AuthorsCreated: []int64{}, Conflicts: []int64{}}
	saved, err := db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		return applyPlan(ctx, tx, plan, applied)
	})
	if err != nil {
		return nil, err
	}
	applied.Command = saved
	return applied, nil
}

func applyPlan(ctx context.Context, tx *storage.Tx, plan Plan, applied *Applied) error {
	current, err := tx.AliasOwners(ctx, plan.Names())
	if err != nil {
		return err
	}
	for _, n := range plan.Names() {
		if !slices.Equal(current[n], plan.Owners[n]) {
			return fmt.Errorf("%w: %s", storage.ErrAliasCollision, n)
		}
	}

	created := make(map[int64]int64) // plan id -> author id
	resolve := func(id int64) int64 {
		if id < 0 {
			return created[id]
		}
		return id
	}

	for _, d := range plan.Decisions {
		switch d.Kind {
		case DecisionCreate:
			id, err := tx.CreateAuthor(ctx, reference.Author{
				Type:       reference.AuthorIndividual,
				FamilyName: d.Name.Family,
				GivenName:  d.Name.Given,
			})
			if err != nil {
				return fmt.Errorf("creating author %s: %w", d.Name, err)
			}
			created[d.AuthorID] = id
			applied.AuthorsCreated = append(applied.AuthorsCreated, id)
			if err := attachGroup(ctx, tx, id, d.Group.Members, applied); err != nil {
				return err
			}

		case DecisionAttach:
			if err := attachGroup(ctx, tx, resolve(d.AuthorID), d.Group.Members, applied); err != nil {
				return err
			}

		case DecisionConflict:
			rawIDs := d.Group.RawAuthorIDs()
			known, err := tx.HasOpenConflict(ctx, d.Group.PublicationID, rawIDs)
			if err != nil {
				return err
			}
			if known {
				applied.ConflictsKnown++
				continue
			}
			authorIDs := make([]int64, len(d.Candidates))
			for i, c := range d.Candidates {
				authorIDs[i] = resolve(c)
			}
			slices.Sort(authorIDs)
			id, err := tx.RecordConflict(ctx, reference.AuthorConflict{
				PublicationID: d.Group.PublicationID,
				RawAuthorIDs:  rawIDs,
				AuthorIDs:     authorIDs,
			})
			if err != nil {
				return fmt.Errorf("recording conflict: %w", err)
			}
			applied.Conflicts = append(applied.Conflicts, id)

		default:
			return fmt.Errorf("unknown decision kind %q", d.Kind)
		}
	}
	return nil
}

// attachGroup makes every member an alias of authorID, links the raw
// strings to those aliases, and adds the authorship edge for each role.
func attachGroup(ctx context.Context, tx *storage.Tx, authorID int64, members []reference.RawAuthor, applied *Applied) error {
	for _, m := range members {
		n := author.Name{Family: m.FamilyName, Given: m.GivenName}
		aliasID, isNew, err := tx.AttachAlias(ctx, authorID, n.Family, n.Given)
		if err != nil {
			return fmt.Errorf("attaching alias %s: %w", n, err)
		}
		if isNew {
			applied.AliasesAttached++
		}
		if err := tx.LinkRawAuthor(ctx, m.ID, aliasID); err != nil {
			return fmt.Errorf("linking raw author %d: %w", m.ID, err)
		}
		applied.RawAuthorsLinked++
		if err := tx.AddPublicationAuthor(ctx, reference.PublicationAuthor{
			PublicationID: m.PublicationID,
			AuthorID:      authorID,
			Role:          m.Role,
			Position:      m.Position,
		}); err != nil {
			return fmt.Errorf("adding authorship: %w", err)
		}
	}
	return nil
}
