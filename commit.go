package mst

// commitLink implements spec.md §4.7's post-order commit walk: every
// Loaded descendant of link is serialized after its children, in
// dependency order, and the returned Link is always OnDisk. An empty
// subtree is never actually written; it canonically serializes as
// offset 0 (inside the reserved header page, so never a real node
// location) paired with the zero Hash, which resolve treats specially.
//
// Already-OnDisk links are returned unchanged without touching the
// store, since their content — by construction — cannot have changed.
func (c *ctx[K, V]) commitLink(link Link[K, V]) (Link[K, V], error) {
	if link.node == nil {
		return link, nil
	}

	node := link.node
	if node.IsEmpty() {
		return onDisk[K, V](0, Hash{}), nil
	}

	newChildren := make([]Link[K, V], len(node.Children))
	for i, child := range node.Children {
		committed, err := c.commitLink(child)
		if err != nil {
			return Link[K, V]{}, err
		}
		newChildren[i] = committed
	}

	onDiskNode := node.cloneShallow()
	onDiskNode.Children = newChildren

	body, err := c.encodeNode(onDiskNode)
	if err != nil {
		return Link[K, V]{}, err
	}
	offset, err := c.store.Append(body)
	if err != nil {
		return Link[K, V]{}, err
	}

	return onDisk[K, V](offset, onDiskNode.hash), nil
}

// Commit persists every dirty (Loaded) node reachable from the tree's
// root, publishes the resulting (offset, hash) pair as the file header,
// and flushes the backing file. It returns the published pair; for a
// tree that has never held a key, that pair is (0, the zero Hash).
func (t *Tree[K, V]) Commit() (uint64, Hash, error) {
	newRoot, err := t.ctx.commitLink(t.root)
	if err != nil {
		return 0, Hash{}, err
	}
	t.root = newRoot

	offset, hash := newRoot.offset, newRoot.Hash()
	if err := t.ctx.store.WriteHeader(offset, hash); err != nil {
		return 0, Hash{}, err
	}
	if err := t.ctx.store.Flush(); err != nil {
		return 0, Hash{}, err
	}
	return offset, hash, nil
}
