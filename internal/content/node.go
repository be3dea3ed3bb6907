// Package content models a locally authored course tree and converts it to and
// from its on-disk form: a JSON manifest plus lesson files with front matter.
package content

import "fmt"

// Kind is the granularity of a content node.
type Kind string

const (
	KindModule  Kind = "module"
	KindSection Kind = "section"
	KindLesson  Kind = "lesson"
)

func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindModule, KindSection, KindLesson:
		return Kind(value), nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrMalformedManifest, value)
	}
}

// Node is one element of a generated content tree. Nodes are rebuilt on every
// run and never shared between runs.
type Node struct {
	// OriginalID is the manifest key; stable across runs.
	OriginalID string
	// PersistedID is the store id recorded in the manifest, empty when unknown.
	PersistedID string
	// TempID stands in for PersistedID until the store assigns one.
	TempID   string
	Kind     Kind
	Position int
	Fields   Fields
	Children []*Node
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(current) {
			continue
		}
		for i := len(current.Children) - 1; i >= 0; i-- {
			stack = append(stack, current.Children[i])
		}
	}
}

// Count returns the number of nodes per kind in the tree rooted at n.
func (n *Node) Count() map[Kind]int {
	counts := make(map[Kind]int, 3)
	n.Walk(func(node *Node) bool {
		counts[node.Kind]++
		return true
	})
	return counts
}
