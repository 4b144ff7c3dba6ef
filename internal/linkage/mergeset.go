package linkage

import (
	"sort"
	"strings"

	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/crossref"
	"github.com/cpritcha/catalog/internal/reference"
)

// Merge set types.
const (
	MergeSetDOI       = "doi"
	MergeSetContainer = "container"
)

// MergeGroup is a set of records sharing a key, ids ascending.
type MergeGroup struct {
	Key string  `json:"key"`
	IDs []int64 `json:"ids"`
}

// MergeSet lists the candidate duplicate groups of one kind of record.
// Only groups of two or more records are included, ordered by first id.
type MergeSet struct {
	Type   string       `json:"type"`
	Groups []MergeGroup `json:"groups"`
}

// MergeSetByDOI groups primary publications sharing a DOI. DOIs compare
// case-insensitively with surrounding space and resolver prefixes removed;
// publications without a DOI are never grouped.
func MergeSetByDOI(pubs []reference.Publication) MergeSet {
	keyed := make(map[string][]int64)
	for _, p := range pubs {
		if !p.IsPrimary {
			continue
		}
		if doi := crossref.NormalizeDOI(p.DOI); doi != "" {
			keyed[doi] = append(keyed[doi], p.ID)
		}
	}
	return buildMergeSet(MergeSetDOI, keyed)
}

// ContainerMergeSet groups containers that look like the same venue: equal
// ISSN when one is recorded, otherwise equal type and normalized name.
// Containers without ISSN or name are never grouped.
func ContainerMergeSet(containers []reference.Container) MergeSet {
	keyed := make(map[string][]int64)
	for _, c := range containers {
		if key := containerKey(c); key != "" {
			keyed[key] = append(keyed[key], c.ID)
		}
	}
	return buildMergeSet(MergeSetContainer, keyed)
}

func containerKey(c reference.Container) string {
	if issn := normalizeISSN(c.ISSN); issn != "" {
		return "issn:" + issn
	}
	name := c.PrimaryName
	if name == "" && len(c.Aliases) > 0 {
		name = c.Aliases[0]
	}
	if name = author.Normalize(name); name == "" {
		return ""
	}
	return "name:" + strings.ToLower(c.Type) + ":" + name
}

func normalizeISSN(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", " ", "").Replace(s)
}

func buildMergeSet(typ string, keyed map[string][]int64) MergeSet {
	set := MergeSet{Type: typ, Groups: []MergeGroup{}}
	for key, ids := range keyed {
		if len(ids) < 2 {
			continue
		}
		sorted := append([]int64(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		set.Groups = append(set.Groups, MergeGroup{Key: key, IDs: sorted})
	}
	sort.Slice(set.Groups, func(i, j int) bool {
		return set.Groups[i].IDs[0] < set.Groups[j].IDs[0]
	})
	return set
}
