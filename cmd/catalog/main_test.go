package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/crossref"
	"github.com/cpritcha/catalog/internal/di/providers"
	"github.com/cpritcha/catalog/internal/ingest"
	"github.com/cpritcha/catalog/internal/linkage"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/review"
	"github.com/cpritcha/catalog/internal/storage"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"not found", fmt.Errorf("getting: %w", storage.ErrNotFound), ExitNotFound},
		{"invalid transition", review.ErrInvalidTransition, ExitDataError},
		{"forbidden", review.ErrForbidden, ExitDataError},
		{"invalid merge", linkage.ErrInvalidMerge, ExitDataError},
		{"alias collision", storage.ErrAliasCollision, ExitDataError},
		{"no entries", ingest.ErrNoEntries, ExitDataError},
		{"no match", ingest.ErrNoMatch, ExitLookupError},
		{"crossref not found", &crossref.APIError{StatusCode: 404}, ExitLookupError},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestShutdownActive_FlushesMetrics(t *testing.T) {
	config.ResetGlobalConfigCache()
	t.Cleanup(config.ResetGlobalConfigCache)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := t.TempDir()
	_, err := config.Init(root)
	require.NoError(t, err)

	prev := metricsFile
	metricsFile = filepath.Join(t.TempDir(), "catalog.prom")
	t.Cleanup(func() { metricsFile = prev })

	injector := mustContainer(root)
	assert.Same(t, injector, active)
	do.MustInvoke[*providers.MetricsHandle](injector)

	// error exits go through shutdownActive
	shutdownActive()
	assert.Nil(t, active)
	assert.FileExists(t, metricsFile)

	shutdownActive()
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"12", " 3 "})
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 3}, ids)

	for _, bad := range []string{"abc", "0", "-4", ""} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseRole(t *testing.T) {
	role, err := parseRole("Curator")
	require.NoError(t, err)
	assert.Equal(t, audit.RoleCuratorEdit, role)

	role, err = parseRole("author")
	require.NoError(t, err)
	assert.Equal(t, audit.RoleAuthorEdit, role)

	_, err = parseRole("system")
	assert.Error(t, err)
}

func TestFilterAuthors(t *testing.T) {
	authors := []reference.Author{
		{ID: 1, FamilyName: "PRITCHARD", GivenName: "CALVIN", Aliases: []reference.AuthorAlias{
			{FamilyName: "PRITCHARD", GivenName: "C"},
		}},
		{ID: 2, FamilyName: "DOE", GivenName: "JANE"},
	}

	got := filterAuthors(authors, author.ParseQuery("Pritchard"))
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	assert.Empty(t, filterAuthors(authors, author.ParseQuery("Smith")))
}

func TestFormatAuthorsShort(t *testing.T) {
	authors := []reference.PublicationAuthor{
		{Role: reference.RoleAuthor, FamilyName: "DOE", GivenName: "JANE"},
		{Role: reference.RoleEditor, FamilyName: "ED", GivenName: "ITOR"},
		{Role: reference.RoleAuthor, FamilyName: "ROE"},
		{Role: reference.RoleAuthor, FamilyName: "POE", GivenName: "EDGAR"},
	}
	assert.Equal(t, "DOE J, ROE, POE E", formatAuthorsShort(authors, 5))
	assert.Equal(t, "DOE J, ROE et al.", formatAuthorsShort(authors, 2))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "short", wrapText("short", 10, "  "))
	assert.Equal(t, "one two\n  three", wrapText("one two three", 8, "  "))
}

const testBib = `@article{doe2020,
  author = {Doe, Jane and Roe, Richard},
  title = {First {Paper}},
  journal = {Journal of Tests},
  year = {2020},
}

@article{broken,
  title = {Missing closing brace

@inproceedings{roe2021,
  author = {Roe, Richard},
  title = {Second Paper},
  booktitle = {Proceedings of Tests},
  year = {2021},
}
`

func TestCommands_IngestAndLink(t *testing.T) {
	config.ResetGlobalConfigCache()
	t.Cleanup(config.ResetGlobalConfigCache)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := t.TempDir()
	t.Chdir(root)

	require.NoError(t, runInit(initCmd, nil))
	require.NoError(t, runConfig(configCmd, []string{"link-after-ingest", "true"}))

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.True(t, cfg.LinkAfterIngest)

	bib := filepath.Join(root, "refs.bib")
	require.NoError(t, os.WriteFile(bib, []byte(testBib), 0644))
	require.NoError(t, runIngestBibtex(ingestBibtexCmd, []string{bib}))

	db, err := storage.OpenDB(config.DBPath(root))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PrimaryPublications)
	assert.Equal(t, 3, stats.RawAuthors)
	assert.Zero(t, stats.UnlinkedRawAuthors)
	assert.GreaterOrEqual(t, stats.Authors, 2)

	// ingest and link are separate commands
	cmds, err := db.AuditCommands(ctx, 0)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, audit.ActionMerge, cmds[0].Action)
	assert.Equal(t, audit.ActionLoad, cmds[1].Action)
}
