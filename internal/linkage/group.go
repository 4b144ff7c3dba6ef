// Package linkage groups raw author strings into candidate people, matches
// the groups against canonical authors, and builds publication and container
// merge sets.
//
// Grouping and matching are pure functions over snapshots read before any
// transaction. Apply then writes a whole plan in one audited command.
package linkage

import (
	"sort"

	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/reference"
)

// Group is a set of raw author strings of one publication believed to name
// the same person. No two members come from the same raw record.
type Group struct {
	PublicationID int64                 `json:"publication_id"`
	Members       []reference.RawAuthor `json:"members"`
}

// Names returns the distinct normalized names of the members in member order.
func (g Group) Names() []author.Name {
	seen := make(map[author.Name]bool, len(g.Members))
	var names []author.Name
	for _, m := range g.Members {
		n := nameOf(m)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

// RawAuthorIDs returns the member ids in member order.
func (g Group) RawAuthorIDs() []int64 {
	ids := make([]int64, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// accepts reports whether ra may join g: it must be similar to every member,
// so a bare initial cannot chain two incompatible names together.
func (g Group) accepts(ra reference.RawAuthor) bool {
	for _, m := range g.Members {
		if m.RawRecordID == ra.RawRecordID || !author.Similar(nameOf(m), nameOf(ra)) {
			return false
		}
	}
	return true
}

func nameOf(ra reference.RawAuthor) author.Name {
	return author.Name{Family: ra.FamilyName, Given: ra.GivenName}
}

// GroupAuthors partitions raw author strings into candidate groups. Strings
// are considered per publication in id order; each joins the first group
// whose members are all similar to it and none from its own raw record, or
// starts a new group. The result is ordered by publication, then by first member.
func GroupAuthors(raws []reference.RawAuthor) []Group {
	sorted := make([]reference.RawAuthor, len(raws))
	copy(sorted, raws)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PublicationID != sorted[j].PublicationID {
			return sorted[i].PublicationID < sorted[j].PublicationID
		}
		return sorted[i].ID < sorted[j].ID
	})

	var groups []Group
	start := 0 // first group of the current publication
	for i, ra := range sorted {
		if i > 0 && ra.PublicationID != sorted[i-1].PublicationID {
			start = len(groups)
		}
		if nameOf(ra).IsZero() {
			continue
		}

		joined := false
		for g := start; g < len(groups); g++ {
			if groups[g].accepts(ra) {
				groups[g].Members = append(groups[g].Members, ra)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, Group{
				PublicationID: ra.PublicationID,
				Members:       []reference.RawAuthor{ra},
			})
		}
	}
	return groups
}
