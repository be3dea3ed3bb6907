package reconcile

import (
	"bytes"
	"encoding/json"
	"slices"

	"academy/contentsync/internal/content"
	"academy/contentsync/internal/store"
)

// Reconciler compares generated nodes with the persisted index. It holds no
// per-run state besides its inputs, so one value can diff any subtree.
type Reconciler struct {
	index store.Index
	site  string
}

// New returns a reconciler over index. site is the tenant tag seeded into new
// resources and appended to existing ones; it may be empty.
func New(index store.Index, site string) *Reconciler {
	if index == nil {
		index = store.Index{}
	}
	return &Reconciler{index: index, site: site}
}

// Plan diffs a whole generated tree against the persisted tree it claims.
func (r *Reconciler) Plan(root *content.Node) Plan {
	return r.Diff(root, r.index.Lookup(root.PersistedID), "")
}

// Diff returns the plan for node and its subtree. existing is the persisted
// match for node, or nil when it is new. parentID is the persisted id of the
// node's parent, empty for the root or when the parent is itself new.
func (r *Reconciler) Diff(node *content.Node, existing *store.Entry, parentID string) Plan {
	plan := newPlan()

	var id string
	if existing == nil {
		fields := node.Fields
		fields.Sites = content.UnionSites(node.Fields.Sites, r.site)
		plan.Inserts = append(plan.Inserts, Insert{
			TempID:     node.TempID,
			OriginalID: node.OriginalID,
			Kind:       node.Kind,
			Fields:     fields,
		})
		id = node.TempID
	} else {
		if patch := r.fieldPatch(node.Fields, existing.Fields); len(patch) > 0 {
			plan.Updates = append(plan.Updates, Update{ID: existing.ID, OriginalID: node.OriginalID, Patch: patch})
		}
		id = existing.ID
	}
	if parentID != "" {
		plan.Rebuild = appendUnique(plan.Rebuild, parentID)
	}
	plan.Assigned[node.OriginalID] = id

	persistedSelf := ""
	current := map[string]bool{}
	if existing != nil {
		persistedSelf = existing.ID
		for _, rel := range existing.Children {
			current[rel.ChildID] = true
		}
	}

	matched := map[string]bool{}
	for i, child := range node.Children {
		var match *store.Entry
		if child.PersistedID != "" && current[child.PersistedID] && !matched[child.PersistedID] {
			match = r.index.Lookup(child.PersistedID)
		}
		if match != nil {
			matched[match.ID] = true
		}

		sub := r.Diff(child, match, persistedSelf)
		plan.Merge(sub)
		plan.Relationships = append(plan.Relationships, store.Relationship{
			ParentID: id,
			ChildID:  sub.Assigned[child.OriginalID],
			Position: float64(i),
		})
	}

	if existing != nil {
		for _, rel := range existing.Children {
			if matched[rel.ChildID] {
				continue
			}
			plan.Deletes = appendUnique(plan.Deletes, r.subtree(rel.ChildID)...)
			plan.Rebuild = appendUnique(plan.Rebuild, existing.ID)
		}
	}
	return plan
}

// subtree lists id and every persisted descendant of it, parents first.
func (r *Reconciler) subtree(id string) []string {
	var out []string
	visited := map[string]bool{id: true}
	stack := []string{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, current)

		entry := r.index.Lookup(current)
		if entry == nil {
			continue
		}
		for i := len(entry.Children) - 1; i >= 0; i-- {
			child := entry.Children[i].ChildID
			if visited[child] {
				continue
			}
			visited[child] = true
			stack = append(stack, child)
		}
	}
	return out
}

// fieldPatch returns the diffed fields whose generated value differs from the
// persisted one. Fields the generated node leaves empty are never patched.
func (r *Reconciler) fieldPatch(generated, persisted content.Fields) map[string]any {
	patch := map[string]any{}
	for _, f := range []struct {
		key       string
		gen, have string
	}{
		{content.FieldTitle, generated.Title, persisted.Title},
		{content.FieldSlug, generated.Slug, persisted.Slug},
		{content.FieldDescription, generated.Description, persisted.Description},
		{content.FieldBody, generated.Body, persisted.Body},
	} {
		if f.gen != "" && f.gen != f.have {
			patch[f.key] = f.gen
		}
	}

	if len(generated.Summary) > 0 && !sameJSON(generated.Summary, persisted.Summary) {
		patch[content.FieldSummary] = generated.Summary
	}

	sites := content.UnionSites(persisted.Sites, generated.Sites...)
	sites = content.UnionSites(sites, r.site)
	if !slices.Equal(sites, persisted.Sites) {
		patch[content.FieldSites] = sites
	}
	return patch
}

func sameJSON(a, b json.RawMessage) bool {
	ca, errA := content.CanonicalJSON(a)
	cb, errB := content.CanonicalJSON(b)
	if errA != nil || errB != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca, cb)
}
