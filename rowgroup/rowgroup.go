// Package rowgroup folds the flattened rows of a one-to-many join back into
// parent objects that own their children.
package rowgroup

// Group is one parent and the children that followed it in the input.
type Group[P any, C any] struct {
	Parent   P
	Children []C
}

// Fold groups rows in a single pass.
//
// rows must already be ordered by parent key, then by child key. Fold does no
// sorting of its own: a parent key that reappears after a different key starts
// a second group.
//
// key extracts the parent key of a row and parent projects the parent side of
// the row; both are only consulted when a new group starts, except key. child
// projects the child side and reports false when the row carries no child,
// which is what a left join yields for a parent without children. Such rows
// still produce their group, with an empty child slice.
//
// The result holds one group per run of equal keys in first-seen order. It is
// never nil, and neither is any group's Children.
func Fold[R any, K comparable, P any, C any](rows []R, key func(R) K, parent func(R) P, child func(R) (C, bool)) []Group[P, C] {
	groups := make([]Group[P, C], 0)
	if len(rows) == 0 {
		return groups
	}

	var last K
	for i, row := range rows {
		k := key(row)
		if i == 0 || k != last {
			groups = append(groups, Group[P, C]{
				Parent:   parent(row),
				Children: make([]C, 0),
			})
			last = k
		}
		if c, ok := child(row); ok {
			current := &groups[len(groups)-1]
			current.Children = append(current.Children, c)
		}
	}
	return groups
}
