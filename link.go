package mst

// Link is a parent-to-child (or tree-root) pointer: either a resident,
// possibly-dirty in-memory node (Loaded), or an offset/hash pair
// referring to an already-committed record (OnDisk). It is the Go
// realization of spec.md §3's tagged union, using the presence of node
// as the discriminant rather than an explicit enum tag — the same idiom
// the retrieved teacher uses for its own child pointers.
type Link[K, V any] struct {
	node   *Node[K, V] // non-nil => Loaded
	offset uint64      // valid when node == nil
	hash   Hash
}

// loaded wraps a resident node as a Link.
func loaded[K, V any](n *Node[K, V]) Link[K, V] {
	return Link[K, V]{node: n, hash: n.hash}
}

// onDisk wraps an already-committed (offset, hash) pair as a Link.
func onDisk[K, V any](offset uint64, hash Hash) Link[K, V] {
	return Link[K, V]{offset: offset, hash: hash}
}

// emptyLink is a Link to the empty-subtree sentinel at the given level.
func emptyLink[K, V any](level uint32) Link[K, V] {
	return loaded(emptyNode[K, V](level))
}

// IsLoaded reports whether l currently holds a resident node.
func (l Link[K, V]) IsLoaded() bool {
	return l.node != nil
}

// Hash returns the content hash of whatever l points to: the resident
// node's hash if Loaded, or the recorded expected hash if OnDisk. This is
// exactly what feeds into a parent's own rehash, independent of whether
// the child happens to be resident — residency must never change a
// node's hash.
func (l Link[K, V]) Hash() Hash {
	if l.node != nil {
		return l.node.hash
	}
	return l.hash
}

// IsEmptySubtree reports whether l points at the empty sentinel, without
// requiring a disk read for an OnDisk link: empty subtrees are never
// persisted, and commitLink records them as OnDisk links with offset 0.
func (l Link[K, V]) IsEmptySubtree() bool {
	if l.node == nil {
		return l.offset == 0
	}
	return l.node.IsEmpty()
}
