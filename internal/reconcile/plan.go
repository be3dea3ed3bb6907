// Package reconcile diffs a generated content tree against the persisted one
// and applies the resulting plan in a single transaction.
package reconcile

import (
	"slices"

	"academy/contentsync/internal/content"
	"academy/contentsync/internal/store"
)

// Insert creates a resource that has no persisted counterpart yet. TempID
// stands in for its id until the store assigns one.
type Insert struct {
	TempID     string         `json:"tempId"`
	OriginalID string         `json:"originalId"`
	Kind       content.Kind   `json:"kind"`
	Fields     content.Fields `json:"fields"`
}

// Update overlays Patch onto the field document of an existing resource.
type Update struct {
	ID         string         `json:"id"`
	OriginalID string         `json:"originalId"`
	Patch      map[string]any `json:"patch"`
}

// Plan is the set of operations one sync applies. Plans are built per node
// and merged upward; none of them share state.
type Plan struct {
	Inserts       []Insert             `json:"inserts"`
	Updates       []Update             `json:"updates"`
	Deletes       []string             `json:"deletes"`
	Rebuild       []string             `json:"rebuild"`
	Relationships []store.Relationship `json:"relationships"`
	// Assigned maps every node's original id to the id it resolved to: the
	// persisted id when matched, its placeholder otherwise.
	Assigned map[string]string `json:"assigned"`
}

func newPlan() Plan {
	return Plan{Assigned: map[string]string{}}
}

// Merge folds other into p. Rebuild and delete sets stay duplicate free.
func (p *Plan) Merge(other Plan) {
	p.Inserts = append(p.Inserts, other.Inserts...)
	p.Updates = append(p.Updates, other.Updates...)
	p.Deletes = appendUnique(p.Deletes, other.Deletes...)
	p.Rebuild = appendUnique(p.Rebuild, other.Rebuild...)
	p.Relationships = append(p.Relationships, other.Relationships...)
	if p.Assigned == nil {
		p.Assigned = make(map[string]string, len(other.Assigned))
	}
	for originalID, id := range other.Assigned {
		p.Assigned[originalID] = id
	}
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

// Summary counts the operations of a plan.
type Summary struct {
	Inserts       int `json:"inserts"`
	Updates       int `json:"updates"`
	Deletes       int `json:"deletes"`
	Rebuilt       int `json:"rebuilt"`
	Relationships int `json:"relationships"`
}

func (p Plan) Summary() Summary {
	return Summary{
		Inserts:       len(p.Inserts),
		Updates:       len(p.Updates),
		Deletes:       len(p.Deletes),
		Rebuilt:       len(p.Rebuild),
		Relationships: len(p.Relationships),
	}
}

// Changes reports whether applying the plan would alter any resource.
// Relationship rebuilds alone do not count.
func (p Plan) Changes() bool {
	return len(p.Inserts)+len(p.Updates)+len(p.Deletes) > 0
}
