package main

import (
	"errors"

	"github.com/cpritcha/catalog/internal/crossref"
	"github.com/cpritcha/catalog/internal/ingest"
	"github.com/cpritcha/catalog/internal/linkage"
	"github.com/cpritcha/catalog/internal/review"
	"github.com/cpritcha/catalog/internal/storage"
)

const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (no repository, invalid config)
	ExitDataError   = 3 // Data error (malformed input, rejected change)
	ExitNotFound    = 4 // Publication, author or conflict not found
	ExitLookupError = 5 // External lookup failed or found no unique match
)

// exitCodeFor maps service errors to exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, review.ErrInvalidTransition),
		errors.Is(err, review.ErrForbidden),
		errors.Is(err, linkage.ErrInvalidMerge),
		errors.Is(err, linkage.ErrConflictResolved),
		errors.Is(err, storage.ErrAliasCollision),
		errors.Is(err, ingest.ErrNoEntries),
		errors.Is(err, ingest.ErrNoDOI):
		return ExitDataError
	case errors.Is(err, ingest.ErrNoMatch),
		errors.Is(err, ingest.ErrNoSource),
		crossref.IsNotFound(err),
		crossref.IsRateLimited(err):
		return ExitLookupError
	}
	return ExitError
}
