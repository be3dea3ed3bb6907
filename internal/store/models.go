package store

import "academy/contentsync/internal/content"

// Resource is a live row of content_resources.
type Resource struct {
	ID     string
	Type   string
	Fields content.Fields
}

// Relationship is a parent/child edge of the content tree.
type Relationship struct {
	ParentID string  `json:"parentId"`
	ChildID  string  `json:"childId"`
	Position float64 `json:"position"`
}

// Entry is a resource together with its outgoing relationships, ordered by
// position.
type Entry struct {
	Resource
	Children []Relationship
}

// ChildIDs returns the ids of the entry's children in order.
func (e *Entry) ChildIDs() []string {
	ids := make([]string, len(e.Children))
	for i, rel := range e.Children {
		ids[i] = rel.ChildID
	}
	return ids
}

// Index is the persisted tree below a root, keyed by resource id.
type Index map[string]*Entry

// Lookup returns the entry for id, or nil when the id was not reachable.
func (ix Index) Lookup(id string) *Entry {
	if id == "" {
		return nil
	}
	return ix[id]
}
