package mst

// get implements spec.md §4.6: binary search at each node, descending
// into the gap child on a miss, terminating with a nil result at an
// empty child. A nil *V (not a zero V) signals absence, matching the
// teacher's own *cid.Cid "maybe present" convention — and Tree.Insert/
// Remove's prior-value return — rather than a separate ok bool.
func (c *ctx[K, V]) get(link Link[K, V], key K) (*V, error) {
	node, err := c.resolve(link)
	if err != nil {
		return nil, err
	}
	if node.IsEmpty() {
		return nil, nil
	}

	idx, found, err := node.search(c, key)
	if err != nil {
		return nil, err
	}
	if found {
		return &node.Values[idx], nil
	}
	if len(node.Children) == 0 {
		return nil, nil
	}
	return c.get(node.Children[idx], key)
}

// contains is get without materializing the value, but still walks
// exactly the same path so a corrupt subtree is detected the same way.
func (c *ctx[K, V]) contains(link Link[K, V], key K) (bool, error) {
	node, err := c.resolve(link)
	if err != nil {
		return false, err
	}
	if node.IsEmpty() {
		return false, nil
	}

	idx, found, err := node.search(c, key)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	if len(node.Children) == 0 {
		return false, nil
	}
	return c.contains(node.Children[idx], key)
}
