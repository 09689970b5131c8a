// Package thread turns the flat, creation-ordered comment list of a section
// into reply trees.
//
// Trees are rebuilt from scratch on every fetch; nodes never outlive the
// slice they were built from. A comment whose parent is missing from the
// input (soft-deleted or never existed) is hidden together with its whole
// subtree. Orphans are never promoted to the top level.
package thread

import "github.com/example/quotation-comments/services/comments/internal/store"

// Node is one comment with its replies, oldest first.
type Node struct {
	Comment store.Comment `json:"comment"`
	Replies []Node        `json:"replies"`
}

// Build returns the top-level comments of comments with their replies
// attached recursively. Sibling order follows input order. Build does not
// modify its input.
func Build(comments []store.Comment) []Node {
	children := make(map[string][]int, len(comments))
	roots := make([]int, 0)
	for i, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], i)
	}

	// visited guards against pathological input where ids repeat or
	// reference each other in a loop.
	visited := make([]bool, len(comments))
	var build func(idx []int) []Node
	build = func(idx []int) []Node {
		out := make([]Node, 0, len(idx))
		for _, i := range idx {
			if visited[i] {
				continue
			}
			visited[i] = true
			out = append(out, Node{
				Comment: comments[i],
				Replies: build(children[comments[i].ID]),
			})
		}
		return out
	}
	return build(roots)
}

// Walk visits nodes in pre-order; depth is 0 for top-level comments.
func Walk(nodes []Node, fn func(depth int, n Node)) {
	var walk func(ns []Node, depth int)
	walk = func(ns []Node, depth int) {
		for _, n := range ns {
			fn(depth, n)
			walk(n.Replies, depth+1)
		}
	}
	walk(nodes, 0)
}

// Flatten returns the comments of nodes in pre-order.
func Flatten(nodes []Node) []store.Comment {
	out := make([]store.Comment, 0)
	Walk(nodes, func(_ int, n Node) { out = append(out, n.Comment) })
	return out
}

// Find returns the comment with id if it is reachable in nodes.
func Find(nodes []Node, id string) (store.Comment, bool) {
	var (
		found store.Comment
		ok    bool
	)
	Walk(nodes, func(_ int, n Node) {
		if !ok && n.Comment.ID == id {
			found, ok = n.Comment, true
		}
	})
	return found, ok
}

// Orphans returns the ids of comments that Build hides because an ancestor
// is missing from comments.
func Orphans(comments []store.Comment) []string {
	reachable := make(map[string]bool, len(comments))
	Walk(Build(comments), func(_ int, n Node) { reachable[n.Comment.ID] = true })

	out := make([]string, 0)
	for _, c := range comments {
		if !reachable[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}
