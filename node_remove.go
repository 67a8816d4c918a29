package mst

// removeFrom implements spec.md §4.5's remove_from. It returns the new
// subtree root replacing link, whether key was actually present, and its
// prior value. Ported from the reference implementation's Node::delete,
// generalized to the Link tagged union and to the spec's explicit
// "collapse a 0-key, ≤1-child result" rule.
func (c *ctx[K, V]) removeFrom(link Link[K, V], key K) (Link[K, V], bool, *V, error) {
	node, err := c.resolve(link)
	if err != nil {
		return Link[K, V]{}, false, nil, err
	}
	if node.IsEmpty() {
		return link, false, nil, nil
	}

	idx, found, err := node.search(c, key)
	if err != nil {
		return Link[K, V]{}, false, nil, err
	}

	if found {
		prior := node.Values[idx]
		leftChild := node.Children[idx]
		rightChild := node.Children[idx+1]
		merged, err := c.merge(leftChild, rightChild)
		if err != nil {
			return Link[K, V]{}, false, nil, err
		}

		newNode := node.cloneShallow()
		newNode.Keys = removeAt(newNode.Keys, idx)
		newNode.Values = removeAt(newNode.Values, idx)
		newNode.Children = append(append([]Link[K, V](nil), newNode.Children[:idx]...), merged)
		newNode.Children = append(newNode.Children, node.Children[idx+2:]...)

		if len(newNode.Keys) == 0 && len(newNode.Children) <= 1 {
			if len(newNode.Children) == 1 {
				return newNode.Children[0], true, &prior, nil
			}
			return emptyLink[K, V](node.Level), true, &prior, nil
		}

		if err := newNode.rehash(c); err != nil {
			return Link[K, V]{}, false, nil, err
		}
		return loaded(newNode), true, &prior, nil
	}

	if len(node.Children) == 0 {
		return link, false, nil, nil
	}

	newChild, deleted, prior, err := c.removeFrom(node.Children[idx], key)
	if err != nil {
		return Link[K, V]{}, false, nil, err
	}
	if !deleted {
		return link, false, nil, nil
	}

	newNode := node.cloneShallow()
	newNode.Children[idx] = newChild
	if err := newNode.rehash(c); err != nil {
		return Link[K, V]{}, false, nil, err
	}
	return loaded(newNode), true, prior, nil
}

// merge implements spec.md §4.5.1: combines two subtrees whose key ranges
// are strictly ordered, reconciling any difference in level by descending
// into the taller side's boundary child.
func (c *ctx[K, V]) merge(left, right Link[K, V]) (Link[K, V], error) {
	leftNode, err := c.resolve(left)
	if err != nil {
		return Link[K, V]{}, err
	}
	rightNode, err := c.resolve(right)
	if err != nil {
		return Link[K, V]{}, err
	}

	if leftNode.IsEmpty() {
		return right, nil
	}
	if rightNode.IsEmpty() {
		return left, nil
	}

	if leftNode.Level > rightNode.Level {
		newLeft := leftNode.cloneShallow()
		lastIdx := len(newLeft.Children) - 1
		lastChild := newLeft.Children[lastIdx]
		merged, err := c.merge(lastChild, right)
		if err != nil {
			return Link[K, V]{}, err
		}
		newLeft.Children[lastIdx] = merged
		if err := newLeft.rehash(c); err != nil {
			return Link[K, V]{}, err
		}
		return loaded(newLeft), nil
	}

	if rightNode.Level > leftNode.Level {
		newRight := rightNode.cloneShallow()
		firstChild := newRight.Children[0]
		merged, err := c.merge(left, firstChild)
		if err != nil {
			return Link[K, V]{}, err
		}
		newRight.Children[0] = merged
		if err := newRight.rehash(c); err != nil {
			return Link[K, V]{}, err
		}
		return loaded(newRight), nil
	}

	newNode := leftNode.cloneShallow()
	leftBoundaryIdx := len(newNode.Children) - 1
	leftBoundary := newNode.Children[leftBoundaryIdx]
	newNode.Children = newNode.Children[:leftBoundaryIdx]

	rightBoundary := rightNode.Children[0]
	mergedBoundary, err := c.merge(leftBoundary, rightBoundary)
	if err != nil {
		return Link[K, V]{}, err
	}

	newNode.Keys = append(newNode.Keys, rightNode.Keys...)
	newNode.Values = append(newNode.Values, rightNode.Values...)
	newNode.Children = append(newNode.Children, mergedBoundary)
	newNode.Children = append(newNode.Children, rightNode.Children[1:]...)

	if err := newNode.rehash(c); err != nil {
		return Link[K, V]{}, err
	}
	return loaded(newNode), nil
}

func removeAt[T any](s []T, idx int) []T {
	return append(s[:idx:idx], s[idx+1:]...)
}
