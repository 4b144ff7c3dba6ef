package linkage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/logger"
	"github.com/cpritcha/catalog/internal/metrics"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/storage"
)

// Errors returned by curator operations.
var (
	ErrInvalidMerge     = errors.New("invalid merge")
	ErrConflictResolved = errors.New("conflict already resolved")
)

// Service runs linkage against the catalog.
type Service struct {
	db      *storage.DB
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a linkage service.
func NewService(db *storage.DB, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Service{db: db, log: log, metrics: m}
}

// LinkResult is the outcome of LinkAuthors. Applied is nil on a dry run.
type LinkResult struct {
	Plan    Plan     `json:"plan"`
	Applied *Applied `json:"applied,omitempty"`
}

// PlanAuthors groups and matches every pending raw author without writing.
func (s *Service) PlanAuthors(ctx context.Context) (Plan, error) {
	raws, err := s.db.PendingRawAuthors(ctx)
	if err != nil {
		return Plan{}, err
	}
	links, err := s.db.RawAuthorLinks(ctx)
	if err != nil {
		return Plan{}, err
	}

	// Groups whose members are all linked were settled by an earlier run.
	var groups []Group
	for _, g := range GroupAuthors(raws) {
		for _, m := range g.Members {
			if _, linked := links[m.ID]; !linked {
				groups = append(groups, g)
				break
			}
		}
	}

	var names []author.Name
	for _, g := range groups {
		names = append(names, g.Names()...)
	}
	owners, err := s.db.AliasOwners(ctx, names)
	if err != nil {
		return Plan{}, err
	}
	return Match(groups, owners), nil
}

// LinkAuthors resolves every pending raw author to a canonical author in
// one command. Groups matching several authors are recorded as conflicts.
// Running it again with no new raw authors writes nothing new.
func (s *Service) LinkAuthors(ctx context.Context, opts Options) (*LinkResult, error) {
	plan, err := s.PlanAuthors(ctx)
	if err != nil {
		return nil, err
	}
	res := &LinkResult{Plan: plan}
	if opts.DryRun {
		return res, nil
	}
	pending, err := s.hasPendingWork(ctx, plan)
	if err != nil || !pending {
		return res, err
	}

	applied, err := Apply(ctx, s.db, plan, opts)
	if err != nil {
		return nil, fmt.Errorf("applying link plan: %w", err)
	}
	res.Applied = applied

	clog := logger.WithCommand(s.log, applied.Command.PublicID)
	for _, d := range plan.Decisions {
		clog.Debug("author group",
			zap.String("kind", string(d.Kind)),
			zap.Int64("publication", d.Group.PublicationID),
			zap.Int64s("raw_authors", d.Group.RawAuthorIDs()),
			zap.Stringer("name", d.Name),
		)
	}
	s.metrics.AuthorsCreated.Add(float64(len(applied.AuthorsCreated)))
	s.metrics.AliasesAttached.Add(float64(applied.AliasesAttached))
	s.metrics.ConflictsRecorded.Add(float64(len(applied.Conflicts)))
	clog.Info("linked authors",
		zap.Int("groups", len(plan.Decisions)),
		zap.Int("authors_created", len(applied.AuthorsCreated)),
		zap.Int("aliases_attached", applied.AliasesAttached),
		zap.Int("conflicts", len(applied.Conflicts)),
	)
	return res, nil
}

// hasPendingWork reports whether applying plan would write anything, that
// is whether it holds a decision other than an already recorded conflict.
func (s *Service) hasPendingWork(ctx context.Context, plan Plan) (bool, error) {
	if plan.Count(DecisionConflict) < len(plan.Decisions) {
		return true, nil
	}
	open, err := s.db.Conflicts(ctx, true)
	if err != nil {
		return false, err
	}
	for _, d := range plan.Decisions {
		known := slices.ContainsFunc(open, func(c reference.AuthorConflict) bool {
			return c.PublicationID == d.Group.PublicationID && slices.Equal(c.RawAuthorIDs, d.Group.RawAuthorIDs())
		})
		if !known {
			return true, nil
		}
	}
	return false, nil
}

// PublicationMergeSet builds the DOI merge set over primary publications.
func (s *Service) PublicationMergeSet(ctx context.Context) (MergeSet, error) {
	pubs, err := s.db.ListPublications(ctx, true)
	if err != nil {
		return MergeSet{}, err
	}
	set := MergeSetByDOI(pubs)
	s.metrics.MergeGroups.WithLabelValues(set.Type).Add(float64(len(set.Groups)))
	return set, nil
}

// ContainerMergeSet builds the container merge set.
func (s *Service) ContainerMergeSet(ctx context.Context) (MergeSet, error) {
	containers, err := s.db.ListContainers(ctx)
	if err != nil {
		return MergeSet{}, err
	}
	set := ContainerMergeSet(containers)
	s.metrics.MergeGroups.WithLabelValues(set.Type).Add(float64(len(set.Groups)))
	return set, nil
}

// MergePublications folds others into survivor in one curator command:
// authorship, citations and raw records move to the survivor and the others
// are marked non-primary. Review status is left alone.
func (s *Service) MergePublications(ctx context.Context, survivorID int64, others []int64, opts Options) (audit.Command, error) {
	if len(others) == 0 {
		return audit.Command{}, fmt.Errorf("%w: nothing to merge into %d", ErrInvalidMerge, survivorID)
	}
	survivor, err := s.db.GetPublication(ctx, survivorID)
	if err != nil {
		return audit.Command{}, err
	}
	if !survivor.IsPrimary {
		return audit.Command{}, fmt.Errorf("%w: survivor %d is not primary", ErrInvalidMerge, survivorID)
	}
	seen := map[int64]bool{survivorID: true}
	for _, id := range others {
		if seen[id] {
			return audit.Command{}, fmt.Errorf("%w: publication %d listed twice", ErrInvalidMerge, id)
		}
		seen[id] = true
	}

	if opts.Message == "" {
		opts.Message = fmt.Sprintf("merge %v into %d", others, survivorID)
	}
	cmd := audit.NewCommand(audit.RoleCuratorEdit, audit.ActionMerge, opts.Creator, opts.Message)
	saved, err := s.db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		for _, id := range others {
			if _, err := tx.GetPublication(ctx, id); err != nil {
				return err
			}
			if err := tx.RepointPublication(ctx, id, survivorID); err != nil {
				return fmt.Errorf("repointing %d: %w", id, err)
			}
			if err := tx.MarkNonPrimary(ctx, id); err != nil {
				return fmt.Errorf("marking %d non-primary: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return audit.Command{}, err
	}

	s.log.Info("merged publications",
		zap.String("command", saved.PublicID),
		zap.Int64("survivor", survivorID),
		zap.Int64s("merged", others),
	)
	return saved, nil
}

// ResolveConflict settles an open conflict by attaching every raw author of
// the conflicting group to authorID, then marks the conflict resolved.
func (s *Service) ResolveConflict(ctx context.Context, conflictID, authorID int64, opts Options) (audit.Command, error) {
	conflicts, err := s.db.Conflicts(ctx, false)
	if err != nil {
		return audit.Command{}, err
	}
	idx := slices.IndexFunc(conflicts, func(c reference.AuthorConflict) bool { return c.ID == conflictID })
	if idx < 0 {
		return audit.Command{}, fmt.Errorf("%w: conflict %d", storage.ErrNotFound, conflictID)
	}
	c := conflicts[idx]
	if c.Resolved {
		return audit.Command{}, fmt.Errorf("%w: %d", ErrConflictResolved, conflictID)
	}
	if _, err := s.db.GetAuthor(ctx, authorID); err != nil {
		return audit.Command{}, err
	}

	raws, err := s.db.RawAuthors(ctx, c.PublicationID)
	if err != nil {
		return audit.Command{}, err
	}
	var members []reference.RawAuthor
	for _, ra := range raws {
		if slices.Contains(c.RawAuthorIDs, ra.ID) {
			members = append(members, ra)
		}
	}

	if opts.Message == "" {
		opts.Message = fmt.Sprintf("resolve conflict %d as author %d", conflictID, authorID)
	}
	applied := &Applied{}
	cmd := audit.NewCommand(audit.RoleCuratorEdit, audit.ActionMerge, opts.Creator, opts.Message)
	saved, err := s.db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		if err := attachGroup(ctx, tx, authorID, members, applied); err != nil {
			return err
		}
		return tx.ResolveConflict(ctx, conflictID)
	})
	if err != nil {
		return audit.Command{}, err
	}

	s.metrics.AliasesAttached.Add(float64(applied.AliasesAttached))
	s.log.Info("resolved conflict",
		zap.String("command", saved.PublicID),
		zap.Int64("conflict", conflictID),
		zap.Int64("author", authorID),
	)
	return saved, nil
}
