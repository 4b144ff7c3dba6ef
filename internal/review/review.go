// Package review enforces the curation workflow of a publication's status.
package review

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/storage"
)

// Errors returned by status changes.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("role may not make this transition")
)

var transitions = map[reference.Status][]reference.Status{
	reference.StatusUntagged: {
		reference.StatusNeedsAuthorReview, reference.StatusFlagged,
		reference.StatusAuthorUpdated, reference.StatusInvalid,
	},
	reference.StatusNeedsAuthorReview: {
		reference.StatusFlagged, reference.StatusAuthorUpdated,
		reference.StatusComplete, reference.StatusInvalid,
	},
	reference.StatusFlagged: {
		reference.StatusNeedsAuthorReview, reference.StatusAuthorUpdated,
		reference.StatusComplete, reference.StatusInvalid,
	},
	reference.StatusAuthorUpdated: {
		reference.StatusNeedsAuthorReview, reference.StatusFlagged,
		reference.StatusComplete, reference.StatusInvalid,
	},
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s reference.Status) bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the workflow allows moving from one status
// to another, regardless of who asks.
func CanTransition(from, to reference.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate checks a transition requested by role. Curators may make any
// allowed transition; authors may only report an update; the system never
// changes review status.
func Validate(role audit.Role, from, to reference.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	switch role {
	case audit.RoleCuratorEdit:
		return nil
	case audit.RoleAuthorEdit:
		if to == reference.StatusAuthorUpdated {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot move %s -> %s", ErrForbidden, role, from, to)
}

// Service applies status changes.
type Service struct {
	db  *storage.DB
	log *zap.Logger
}

// NewService creates a review service.
func NewService(db *storage.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

// SetStatus moves a publication to status to under one MANUAL command
// issued by role. The check and the write share the transaction.
func (s *Service) SetStatus(ctx context.Context, publicationID int64, to reference.Status, role audit.Role, creator, message string) (audit.Command, error) {
	var from reference.Status
	cmd := audit.NewCommand(role, audit.ActionManual, creator, message)
	saved, err := s.db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		pub, err := tx.GetPublication(ctx, publicationID)
		if err != nil {
			return err
		}
		from = pub.Status
		if err := Validate(role, from, to); err != nil {
			return err
		}
		return tx.SetStatus(ctx, publicationID, to)
	})
	if err != nil {
		return audit.Command{}, err
	}

	s.log.Info("status changed",
		zap.String("command", saved.PublicID),
		zap.Int64("publication", publicationID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return saved, nil
}
