package mst

import (
	"bytes"

	"github.com/Le-Maz/file-mst/pagestore"
)

// Node is an immutable-by-convention MST node: a level, a sorted parallel
// array of keys and values, and a vector of child Links one longer than
// Keys unless the node is a leaf. Mutation never happens in place; every
// insert/remove builds and returns a new Node, sharing unchanged child
// subtrees by Link.
type Node[K, V any] struct {
	Level    uint32
	Keys     []K
	Values   []V
	Children []Link[K, V]

	hash Hash
}

// emptyNode is the sentinel representing an empty subtree at the given
// level: no keys, no children, zero hash.
func emptyNode[K, V any](level uint32) *Node[K, V] {
	return &Node[K, V]{Level: level}
}

// IsEmpty reports whether n is the empty-subtree sentinel.
func (n *Node[K, V]) IsEmpty() bool {
	return len(n.Keys) == 0 && len(n.Children) == 0
}

// Hash returns n's canonical content digest. The zero Node's hash is the
// zero Hash.
func (n *Node[K, V]) Hash() Hash {
	return n.hash
}

// ctx threads the operation-scoped collaborators every recursive tree
// procedure needs: the backing store (to resolve on-disk links) and the
// caller-supplied codecs (to order keys and compute levels). This mirrors
// the reference implementation's practice of passing `store: &Arc<Store<K,V>>`
// through every put/split/delete/merge call; Go additionally threads the
// codecs because it has no Ord/Serialize trait bounds to fall back on.
type ctx[K, V any] struct {
	store     *pagestore.Store[*Node[K, V]] // nil when only codecs are needed (decode-time rehash)
	encodeKey func(K) ([]byte, error)
	decodeKey func([]byte) (K, error)
	encodeVal func(V) ([]byte, error)
	decodeVal func([]byte) (V, error)
}

func (c *ctx[K, V]) cmp(a, b K) (int, error) {
	ab, err := c.encodeKey(a)
	if err != nil {
		return 0, &SerializationError{Op: "compare key", Err: err}
	}
	bb, err := c.encodeKey(b)
	if err != nil {
		return 0, &SerializationError{Op: "compare key", Err: err}
	}
	return bytes.Compare(ab, bb), nil
}

func (c *ctx[K, V]) levelOf(k K) (uint32, error) {
	kb, err := c.encodeKey(k)
	if err != nil {
		return 0, &SerializationError{Op: "compute level", Err: err}
	}
	return computeLevel(kb), nil
}

// resolve returns the in-memory node a Link points to, reading through the
// page store on an OnDisk link. Resolution never mutates the parent link:
// an OnDisk link that gets read stays OnDisk, and the cache is the only
// thing that remembers the materialized node (spec.md §4.2).
func (c *ctx[K, V]) resolve(l Link[K, V]) (*Node[K, V], error) {
	if l.node != nil {
		return l.node, nil
	}
	if l.offset == 0 {
		// Offset 0 falls inside the reserved header page and can never be a
		// real node record; it is the canonical on-disk encoding of the
		// empty-subtree sentinel (see commitLink).
		return emptyNode[K, V](0), nil
	}
	n, err := c.store.Read(l.offset, l.hash)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// search binary-searches n.Keys for key, returning either the exact index
// (found=true) or the index at which key would be inserted.
func (n *Node[K, V]) search(c *ctx[K, V], key K) (idx int, found bool, err error) {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		cmp, err := c.cmp(n.Keys[mid], key)
		if err != nil {
			return 0, false, err
		}
		switch {
		case cmp == 0:
			return mid, true, nil
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false, nil
}

// rehash recomputes n.hash per spec.md §4.3:
//
//	H(encode(level) || encode(keys) || encode(values) || encode(child_hashes))
//
// An empty node (no keys, no children) always hashes to the zero Hash,
// which is what lets an empty tree report a zero root hash.
func (n *Node[K, V]) rehash(c *ctx[K, V]) error {
	if n.IsEmpty() {
		n.hash = Hash{}
		return nil
	}

	h := newCanonicalHasher()
	h.writeUvarint(uint64(n.Level))

	h.writeUvarint(uint64(len(n.Keys)))
	for _, k := range n.Keys {
		kb, err := c.encodeKey(k)
		if err != nil {
			return &SerializationError{Op: "hash key", Err: err}
		}
		h.writeBytes(kb)
	}

	h.writeUvarint(uint64(len(n.Values)))
	for _, v := range n.Values {
		vb, err := c.encodeVal(v)
		if err != nil {
			return &SerializationError{Op: "hash value", Err: err}
		}
		h.writeBytes(vb)
	}

	h.writeUvarint(uint64(len(n.Children)))
	for _, child := range n.Children {
		h.writeHash(child.Hash())
	}

	n.hash = h.sum()
	return nil
}

// cloneShallow copies n's slices (not their elements) so a mutator can
// append/insert/remove without perturbing the original node, which some
// other Link may still be sharing.
func (n *Node[K, V]) cloneShallow() *Node[K, V] {
	return &Node[K, V]{
		Level:    n.Level,
		Keys:     append([]K(nil), n.Keys...),
		Values:   append([]V(nil), n.Values...),
		Children: append([]Link[K, V](nil), n.Children...),
		hash:     n.hash,
	}
}
