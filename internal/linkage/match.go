package linkage

import (
	"sort"

	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/storage"
)

// DecisionKind is what Apply does with a group.
type DecisionKind string

const (
	DecisionAttach   DecisionKind = "attach"   // exactly one canonical author matches
	DecisionCreate   DecisionKind = "create"   // no canonical author matches
	DecisionConflict DecisionKind = "conflict" // several do; left for review
)

// Decision is the planned outcome for one group.
//
// Authors created by the plan itself are referred to by negative ids: -1 is
// the first author created, -2 the second, and so on. Apply replaces them
// with the real ids as it goes.
type Decision struct {
	Kind       DecisionKind `json:"kind"`
	Group      Group        `json:"group"`
	AuthorID   int64        `json:"author_id,omitempty"`
	Name       author.Name  `json:"name"`
	Candidates []int64      `json:"candidates,omitempty"`
}

// Plan is the matched form of a grouping. Owners is the alias ownership
// snapshot the decisions were made against.
type Plan struct {
	Decisions []Decision          `json:"decisions"`
	Owners    storage.AliasOwners `json:"-"`
}

// Names returns every distinct member name in the plan.
func (p Plan) Names() []author.Name {
	seen := make(map[author.Name]bool)
	var names []author.Name
	for _, d := range p.Decisions {
		for _, n := range d.Group.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// Count returns the number of decisions of kind k.
func (p Plan) Count(k DecisionKind) int {
	n := 0
	for _, d := range p.Decisions {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Match decides each group against the alias owners snapshot. Groups are
// taken in order and the aliases each decision would add are visible to the
// groups after it, so one name seen in two publications yields one author.
// Match does not modify owners.
func Match(groups []Group, owners storage.AliasOwners) Plan {
	plan := Plan{Owners: owners}

	working := make(storage.AliasOwners, len(owners))
	for n, ids := range owners {
		working[n] = append([]int64(nil), ids...)
	}
	nextNew := int64(-1)

	for _, g := range groups {
		names := g.Names()
		ids := working.SortedIDs(names...)

		d := Decision{Group: g, Name: primaryName(names)}
		switch len(ids) {
		case 0:
			d.Kind = DecisionCreate
			d.AuthorID = nextNew
			nextNew--
		case 1:
			d.Kind = DecisionAttach
			d.AuthorID = ids[0]
		default:
			d.Kind = DecisionConflict
			d.Candidates = ids
		}

		if d.Kind != DecisionConflict {
			for _, n := range names {
				working[n] = addID(working[n], d.AuthorID)
			}
		}
		plan.Decisions = append(plan.Decisions, d)
	}
	return plan
}

// primaryName picks the most complete name of a group: the longest given
// name, earliest on ties.
func primaryName(names []author.Name) author.Name {
	var best author.Name
	for i, n := range names {
		if i == 0 || len([]rune(n.Given)) > len([]rune(best.Given)) {
			best = n
		}
	}
	return best
}

func addID(ids []int64, id int64) []int64 {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	ids = append(ids, id)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
