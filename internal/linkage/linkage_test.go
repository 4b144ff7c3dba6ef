package linkage

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/ingest"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/storage"
)

func raw(id, record, pub int64, name string) reference.RawAuthor {
	n := author.Split(name)
	return reference.RawAuthor{
		ID:            id,
		RawRecordID:   record,
		PublicationID: pub,
		Name:          n.String(),
		FamilyName:    n.Family,
		GivenName:     n.Given,
		Role:          reference.RoleAuthor,
	}
}

func groupIDs(groups []Group) [][]int64 {
	out := make([][]int64, len(groups))
	for i, g := range groups {
		out[i] = g.RawAuthorIDs()
	}
	return out
}

func TestGroupAuthors(t *testing.T) {
	tests := []struct {
		name string
		raws []reference.RawAuthor
		want [][]int64
	}{
		{
			name: "different sources of one publication",
			raws: []reference.RawAuthor{raw(1, 10, 1, "Foo, Baz"), raw(2, 11, 1, "Foo, B.")},
			want: [][]int64{{1, 2}},
		},
		{
			name: "same source never grouped",
			raws: []reference.RawAuthor{raw(1, 10, 1, "Smith, J."), raw(2, 10, 1, "Smith, J. A.")},
			want: [][]int64{{1}, {2}},
		},
		{
			name: "different publications never grouped",
			raws: []reference.RawAuthor{raw(1, 10, 1, "Foo, Baz"), raw(2, 11, 2, "Foo, Baz")},
			want: [][]int64{{1}, {2}},
		},
		{
			name: "conflicting initials",
			raws: []reference.RawAuthor{raw(1, 10, 1, "Abbas, A. K."), raw(2, 11, 1, "Abbas, A. B.")},
			want: [][]int64{{1}, {2}},
		},
		{
			name: "bare initial does not chain conflicting initials",
			raws: []reference.RawAuthor{
				raw(1, 10, 1, "Abbas, A."),
				raw(2, 11, 1, "Abbas, A. K."),
				raw(3, 12, 1, "Abbas, A. B."),
			},
			want: [][]int64{{1, 2}, {3}},
		},
		{
			name: "co-authors kept apart across sources",
			raws: []reference.RawAuthor{
				raw(1, 10, 1, "Waldherr, Annie"),
				raw(2, 10, 1, "Wijermans, Nanda"),
				raw(3, 11, 1, "WALDHERR A"),
				raw(4, 11, 1, "WIJERMANS N"),
			},
			want: [][]int64{{1, 3}, {2, 4}},
		},
		{
			name: "empty names skipped",
			raws: []reference.RawAuthor{raw(1, 10, 1, " . "), raw(2, 10, 1, "Foo, B.")},
			want: [][]int64{{2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, groupIDs(GroupAuthors(tt.raws)))
		})
	}
}

func TestGroupAuthors_Deterministic(t *testing.T) {
	raws := []reference.RawAuthor{
		raw(1, 10, 1, "Foo, Baz"),
		raw(2, 10, 1, "Bar, Q."),
		raw(3, 11, 1, "Foo, B."),
		raw(4, 12, 2, "Bar, Quux"),
		raw(5, 13, 2, "Bar, Q."),
	}
	want := groupIDs(GroupAuthors(raws))

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]reference.RawAuthor(nil), raws...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, groupIDs(GroupAuthors(shuffled)))
	}
}

func TestMatch_ConflictingInitialsCreateTwoAuthors(t *testing.T) {
	groups := GroupAuthors([]reference.RawAuthor{
		raw(1, 10, 1, "Abbas, A."),
		raw(2, 11, 1, "Abbas, A. K."),
		raw(3, 12, 1, "Abbas, A. B."),
	})

	plan := Match(groups, nil)
	require.Len(t, plan.Decisions, 2)
	assert.Equal(t, 2, plan.Count(DecisionCreate))
	assert.Equal(t, author.NewName("ABBAS", "A K"), plan.Decisions[0].Name)
	assert.Equal(t, author.NewName("ABBAS", "A B"), plan.Decisions[1].Name)
	assert.NotEqual(t, plan.Decisions[0].AuthorID, plan.Decisions[1].AuthorID)
}

func TestMatch(t *testing.T) {
	groups := []Group{
		{PublicationID: 1, Members: []reference.RawAuthor{raw(1, 10, 1, "Pritchard, C.")}},
		{PublicationID: 1, Members: []reference.RawAuthor{raw(2, 10, 1, "Foo, Baz")}},
		{PublicationID: 2, Members: []reference.RawAuthor{raw(3, 11, 2, "Foo, Baz")}},
		{PublicationID: 3, Members: []reference.RawAuthor{raw(4, 12, 3, "Smith, John"), raw(5, 13, 3, "Smith, J.")}},
	}
	owners := storage.AliasOwners{
		author.NewName("PRITCHARD", "C"):    {7},
		author.NewName("SMITH", "JOHN"):     {8},
		author.NewName("SMITH", "J"):        {9},
		author.NewName("UNRELATED", "NAME"): {10},
	}

	plan := Match(groups, owners)
	require.Len(t, plan.Decisions, 4)

	assert.Equal(t, DecisionAttach, plan.Decisions[0].Kind)
	assert.Equal(t, int64(7), plan.Decisions[0].AuthorID)

	assert.Equal(t, DecisionCreate, plan.Decisions[1].Kind)
	assert.Equal(t, int64(-1), plan.Decisions[1].AuthorID)
	assert.Equal(t, author.NewName("FOO", "BAZ"), plan.Decisions[1].Name)

	// The same name in a later publication reuses the planned author.
	assert.Equal(t, DecisionAttach, plan.Decisions[2].Kind)
	assert.Equal(t, int64(-1), plan.Decisions[2].AuthorID)

	assert.Equal(t, DecisionConflict, plan.Decisions[3].Kind)
	assert.Equal(t, []int64{8, 9}, plan.Decisions[3].Candidates)
	assert.Equal(t, author.NewName("SMITH", "JOHN"), plan.Decisions[3].Name)

	assert.Equal(t, 1, plan.Count(DecisionCreate))
	assert.Equal(t, 2, plan.Count(DecisionAttach))

	// The snapshot itself is untouched.
	_, planned := owners[author.NewName("FOO", "BAZ")]
	assert.False(t, planned)
	assert.Len(t, owners, 4)
}

func TestMergeSetByDOI(t *testing.T) {
	pubs := []reference.Publication{
		{ID: 1, DOI: "10.1001/a", IsPrimary: true},
		{ID: 2, DOI: " 10.1001/A", IsPrimary: true},
		{ID: 3, DOI: "10.1001/b", IsPrimary: true},
		{ID: 4, DOI: "https://doi.org/10.1001/C", IsPrimary: true},
		{ID: 5, DOI: "10.1001/c", IsPrimary: true},
		{ID: 6, DOI: "10.1001/b", IsPrimary: false},
		{ID: 7, IsPrimary: true},
		{ID: 8, IsPrimary: true},
	}

	set := MergeSetByDOI(pubs)
	assert.Equal(t, MergeSetDOI, set.Type)
	assert.Equal(t, []MergeGroup{
		{Key: "10.1001/a", IDs: []int64{1, 2}},
		{Key: "10.1001/c", IDs: []int64{4, 5}},
	}, set.Groups)
}

func TestMergeSetByDOI_Small(t *testing.T) {
	set := MergeSetByDOI([]reference.Publication{
		{ID: 1, DOI: "10.1001/a", IsPrimary: true},
		{ID: 2, DOI: "10.1001/a", IsPrimary: true},
		{ID: 3, DOI: "10.1001/b", IsPrimary: true},
	})
	require.Len(t, set.Groups, 1)
	assert.Equal(t, []int64{1, 2}, set.Groups[0].IDs)

	assert.Empty(t, MergeSetByDOI(nil).Groups)
}

func TestContainerMergeSet(t *testing.T) {
	set := ContainerMergeSet([]reference.Container{
		{ID: 1, Type: "article", ISSN: "1460-7425", PrimaryName: "JASSS"},
		{ID: 2, Type: "article", ISSN: "14607425", PrimaryName: "J ARTIF SOC SOC SIMUL"},
		{ID: 3, Type: "article", PrimaryName: "Bioinformatics."},
		{ID: 4, Type: "Article", Aliases: []string{"BIOINFORMATICS"}},
		{ID: 5, Type: "inproceedings", PrimaryName: "Bioinformatics"},
		{ID: 6, Type: "article"},
		{ID: 7, Type: "article"},
	})
	assert.Equal(t, MergeSetContainer, set.Type)
	assert.Equal(t, []MergeGroup{
		{Key: "issn:14607425", IDs: []int64{1, 2}},
		{Key: "name:article:BIOINFORMATICS", IDs: []int64{3, 4}},
	}, set.Groups)
}

// Storage-backed tests.

func setup(t *testing.T) (*Service, *ingest.Service, *storage.DB) {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, nil, nil), ingest.NewService(db, nil, nil, nil), db
}

func ingestEntry(t *testing.T, ing *ingest.Service, entry reference.Entry) int64 {
	t.Helper()
	res, err := ing.IngestEntries(context.Background(), []reference.Entry{entry}, ingest.Options{Creator: "test"})
	require.NoError(t, err)
	return res.Entries[0].PublicationID
}

// seedAuthor creates an author holding one alias per given name.
func seedAuthor(t *testing.T, db *storage.DB, family string, givens ...string) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	var (
		authorID int64
		aliasIDs []int64
	)
	cmd := audit.NewCommand(audit.RoleCuratorEdit, audit.ActionManual, "test", "")
	_, err := db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		var err error
		authorID, err = tx.CreateAuthor(ctx, reference.Author{FamilyName: family, GivenName: givens[0]})
		if err != nil {
			return err
		}
		for _, g := range givens {
			id, _, err := tx.AttachAlias(ctx, authorID, family, g)
			if err != nil {
				return err
			}
			aliasIDs = append(aliasIDs, id)
		}
		return nil
	})
	require.NoError(t, err)
	return authorID, aliasIDs
}

// addLookupAuthor stores a lookup raw record with one author string on pubID.
func addLookupAuthor(t *testing.T, db *storage.DB, pubID int64, name string) int64 {
	t.Helper()
	ctx := context.Background()
	var rawAuthorID int64
	cmd := audit.NewCommand(audit.RoleSystemLog, audit.ActionLoad, "test", "")
	_, err := db.WithCommand(ctx, cmd, func(tx *storage.Tx) error {
		recID, err := tx.CreateRawRecord(ctx, pubID, reference.LookupSuccessPayload{DOI: "10.1/x", Work: []byte(`{}`)})
		if err != nil {
			return err
		}
		n := author.Split(name)
		rawAuthorID, err = tx.CreateRawAuthor(ctx, reference.RawAuthor{
			RawRecordID: recID, Name: n.String(), FamilyName: n.Family, GivenName: n.Given,
		})
		return err
	})
	require.NoError(t, err)
	return rawAuthorID
}

func TestLinkAuthors_ExistingAlias(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	authorID, aliasIDs := seedAuthor(t, db, "PRITCHARD", "C", "CALVIN")
	pubID := ingestEntry(t, ing, reference.Entry{"title": "Catalog", "author": "Pritchard, C."})

	res, err := svc.LinkAuthors(ctx, Options{Creator: "test"})
	require.NoError(t, err)
	require.Len(t, res.Plan.Decisions, 1)
	assert.Equal(t, DecisionAttach, res.Plan.Decisions[0].Kind)
	require.NotNil(t, res.Applied)
	assert.Empty(t, res.Applied.AuthorsCreated)
	assert.Zero(t, res.Applied.AliasesAttached)

	a, err := db.GetAuthor(ctx, authorID)
	require.NoError(t, err)
	assert.Len(t, a.Aliases, 2)

	raws, err := db.RawAuthors(ctx, pubID)
	require.NoError(t, err)
	links, err := db.RawAuthorLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, aliasIDs[0], links[raws[0].ID])

	pas, err := db.PublicationAuthors(ctx, pubID)
	require.NoError(t, err)
	require.Len(t, pas, 1)
	assert.Equal(t, authorID, pas[0].AuthorID)
}

func TestLinkAuthors_NewAuthor(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	ingestEntry(t, ing, reference.Entry{"title": "Catalog", "author": "Foo, Baz"})

	res, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Applied)
	require.Len(t, res.Applied.AuthorsCreated, 1)

	a, err := db.GetAuthor(ctx, res.Applied.AuthorsCreated[0])
	require.NoError(t, err)
	assert.Equal(t, "FOO", a.FamilyName)
	assert.Equal(t, "BAZ", a.GivenName)
	assert.Len(t, a.Aliases, 1)
}

func TestLinkAuthors_GroupsAcrossSources(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	pubID := ingestEntry(t, ing, reference.Entry{"title": "Catalog", "author": "Foo, Baz"})
	addLookupAuthor(t, db, pubID, "Foo, B.")

	res, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, res.Plan.Decisions, 1)
	assert.Len(t, res.Plan.Decisions[0].Group.Members, 2)
	require.Len(t, res.Applied.AuthorsCreated, 1)
	assert.Equal(t, 2, res.Applied.AliasesAttached)
	assert.Equal(t, 2, res.Applied.RawAuthorsLinked)

	authors, err := db.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Len(t, authors[0].Aliases, 2)

	pas, err := db.PublicationAuthors(ctx, pubID)
	require.NoError(t, err)
	assert.Len(t, pas, 1)
}

func TestLinkAuthors_Idempotent(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	ingestEntry(t, ing, reference.Entry{"title": "One", "author": "Waldherr, Annie and Wijermans, Nanda"})
	ingestEntry(t, ing, reference.Entry{"title": "Two", "author": "Waldherr, Annie"})

	first, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)
	assert.Len(t, first.Applied.AuthorsCreated, 2)

	before, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, before.Authors)
	assert.Equal(t, 2, before.AuthorAliases)
	assert.Zero(t, before.UnlinkedRawAuthors)

	second, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, second.Plan.Decisions)
	assert.Nil(t, second.Applied)

	after, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLinkAuthors_DryRun(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	ingestEntry(t, ing, reference.Entry{"title": "Catalog", "author": "Foo, Baz"})

	res, err := svc.LinkAuthors(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Plan.Count(DecisionCreate))
	assert.Nil(t, res.Applied)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Authors)
}

func TestLinkAuthors_ConflictLeftForReview(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	john, _ := seedAuthor(t, db, "SMITH", "JOHN")
	j, _ := seedAuthor(t, db, "SMITH", "J")
	pubID := ingestEntry(t, ing, reference.Entry{"title": "Catalog", "author": "Smith, John"})
	addLookupAuthor(t, db, pubID, "Smith, J.")

	res, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, res.Applied.Conflicts, 1)

	conflicts, err := db.Conflicts(ctx, true)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []int64{john, j}, conflicts[0].AuthorIDs)
	assert.Len(t, conflicts[0].RawAuthorIDs, 2)
	assert.Equal(t, pubID, conflicts[0].PublicationID)

	// Nothing was merged.
	pas, err := db.PublicationAuthors(ctx, pubID)
	require.NoError(t, err)
	assert.Empty(t, pas)

	// A second run records nothing new.
	again, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)
	assert.Nil(t, again.Applied)
	conflicts, err = db.Conflicts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)

	_, err = svc.ResolveConflict(ctx, conflicts[0].ID, john, Options{Creator: "curator"})
	require.NoError(t, err)

	open, err := db.Conflicts(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, open)

	owners, err := db.AuthorsOfRawAuthors(ctx)
	require.NoError(t, err)
	for _, id := range conflicts[0].RawAuthorIDs {
		assert.Equal(t, john, owners[id])
	}

	_, err = svc.ResolveConflict(ctx, conflicts[0].ID, john, Options{})
	assert.ErrorIs(t, err, ErrConflictResolved)

	final, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, final.Plan.Decisions)
}

func TestApply_AliasCollision(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	ingestEntry(t, ing, reference.Entry{"title": "Catalog", "author": "Foo, Baz"})
	plan, err := svc.PlanAuthors(ctx)
	require.NoError(t, err)

	// Someone else claims the name after planning.
	seedAuthor(t, db, "FOO", "BAZ")

	_, err = Apply(ctx, db, plan, Options{})
	assert.ErrorIs(t, err, storage.ErrAliasCollision)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Authors)
	assert.Equal(t, 1, stats.UnlinkedRawAuthors)
}

func TestLinkAuthors_LeavesStatus(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	pubID := ingestEntry(t, ing, reference.Entry{"title": "Catalog", "author": "Foo, Baz"})
	_, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)

	pub, err := db.GetPublication(ctx, pubID)
	require.NoError(t, err)
	assert.Equal(t, reference.StatusUntagged, pub.Status)
}

func TestMergePublications(t *testing.T) {
	svc, ing, db := setup(t)
	ctx := context.Background()

	p1 := ingestEntry(t, ing, reference.Entry{"title": "Catalog", "doi": "10.1001/a", "author": "Foo, Baz"})
	p2 := ingestEntry(t, ing, reference.Entry{"title": "Catalog.", "doi": "10.1001/A", "author": "Foo, B."})
	ingestEntry(t, ing, reference.Entry{"title": "Other", "doi": "10.1001/b"})
	_, err := svc.LinkAuthors(ctx, Options{})
	require.NoError(t, err)

	set, err := svc.PublicationMergeSet(ctx)
	require.NoError(t, err)
	require.Len(t, set.Groups, 1)
	assert.Equal(t, []int64{p1, p2}, set.Groups[0].IDs)

	cmd, err := svc.MergePublications(ctx, p1, []int64{p2}, Options{Creator: "curator"})
	require.NoError(t, err)
	assert.Equal(t, audit.RoleCuratorEdit, cmd.Role)
	assert.Equal(t, audit.ActionMerge, cmd.Action)

	merged, err := db.GetPublication(ctx, p2)
	require.NoError(t, err)
	assert.False(t, merged.IsPrimary)
	assert.Equal(t, reference.StatusUntagged, merged.Status)

	records, err := db.RawRecords(ctx, p1)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	set, err = svc.PublicationMergeSet(ctx)
	require.NoError(t, err)
	assert.Empty(t, set.Groups)
}

func TestMergePublications_Invalid(t *testing.T) {
	svc, ing, _ := setup(t)
	ctx := context.Background()

	p1 := ingestEntry(t, ing, reference.Entry{"title": "A"})
	p2 := ingestEntry(t, ing, reference.Entry{"title": "B"})

	_, err := svc.MergePublications(ctx, p1, nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidMerge)

	_, err = svc.MergePublications(ctx, p1, []int64{p1}, Options{})
	assert.ErrorIs(t, err, ErrInvalidMerge)

	_, err = svc.MergePublications(ctx, p1, []int64{p2, p2}, Options{})
	assert.ErrorIs(t, err, ErrInvalidMerge)

	_, err = svc.MergePublications(ctx, p1, []int64{999}, Options{})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.MergePublications(ctx, 999, []int64{p2}, Options{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestContainerMergeSet_FromStore(t *testing.T) {
	svc, ing, _ := setup(t)
	ctx := context.Background()

	ingestEntry(t, ing, reference.Entry{"title": "A", "journal": "Bioinformatics", "entrytype": "article"})
	ingestEntry(t, ing, reference.Entry{"title": "B", "journal": "BIOINFORMATICS.", "entrytype": "article"})

	set, err := svc.ContainerMergeSet(ctx)
	require.NoError(t, err)
	require.Len(t, set.Groups, 1)
	assert.Len(t, set.Groups[0].IDs, 2)
}
