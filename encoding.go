package mst

import (
	"fmt"

	"github.com/multiformats/go-varint"
	"lukechampine.com/blake3"
)

// canonicalHasher accumulates the fields that make up a node's content
// hash per spec.md §4.3, each length-prefixed so that e.g. two adjacent
// empty strings cannot be confused with one two-byte string.
type canonicalHasher struct {
	h *blake3.Hasher
}

func newCanonicalHasher() *canonicalHasher {
	return &canonicalHasher{h: blake3.New(HashSize, nil)}
}

func (c *canonicalHasher) writeUvarint(x uint64) {
	buf := make([]byte, varint.UvarintSize(x))
	varint.PutUvarint(buf, x)
	c.h.Write(buf)
}

func (c *canonicalHasher) writeBytes(b []byte) {
	c.writeUvarint(uint64(len(b)))
	c.h.Write(b)
}

func (c *canonicalHasher) writeHash(h Hash) {
	c.h.Write(h[:])
}

func (c *canonicalHasher) sum() Hash {
	var out Hash
	copy(out[:], c.h.Sum(nil))
	return out
}

// encodeNode serializes n into its on-disk record body: level, the key and
// value arrays, and the child table as (offset, hash) pairs. This is the
// wire form handed to pagestore.Store.Append — distinct from the canonical
// hash input, which omits offsets so that a node's content hash never
// depends on where it (or its children) happen to live on disk.
//
// Every child Link must already be resolved to an on-disk offset (i.e.
// written out in post-order) before its parent is encoded; encodeNode
// returns an error if it finds a Link still only Loaded.
func (c *ctx[K, V]) encodeNode(n *Node[K, V]) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = appendUvarint(buf, uint64(n.Level))

	buf = appendUvarint(buf, uint64(len(n.Keys)))
	for _, k := range n.Keys {
		kb, err := c.encodeKey(k)
		if err != nil {
			return nil, &SerializationError{Op: "encode key", Err: err}
		}
		buf = appendBytes(buf, kb)
	}

	buf = appendUvarint(buf, uint64(len(n.Values)))
	for _, v := range n.Values {
		vb, err := c.encodeVal(v)
		if err != nil {
			return nil, &SerializationError{Op: "encode value", Err: err}
		}
		buf = appendBytes(buf, vb)
	}

	buf = appendUvarint(buf, uint64(len(n.Children)))
	for _, child := range n.Children {
		if child.node != nil {
			return nil, &SerializationError{Op: "encode children", Err: fmt.Errorf("child link not yet written to disk")}
		}
		buf = appendUvarint(buf, child.offset)
		buf = append(buf, child.hash[:]...)
	}

	return buf, nil
}

// decodeNode is the inverse of encodeNode. It also recomputes and caches
// the node's canonical hash, so that a pagestore hashOf callback built on
// decodeNode never needs to redo key/value decoding just to verify
// integrity.
func (c *ctx[K, V]) decodeNode(body []byte) (*Node[K, V], error) {
	n, rest, err := c.decodeNodeFields(body)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &SerializationError{Op: "decode node", Err: fmt.Errorf("%d trailing bytes", len(rest))}
	}
	if len(n.Values) != len(n.Keys) || (len(n.Children) != 0 && len(n.Children) != len(n.Keys)+1) {
		return nil, ErrInvalidTree
	}
	if err := n.rehash(c); err != nil {
		return nil, err
	}
	return n, nil
}

func (c *ctx[K, V]) decodeNodeFields(body []byte) (*Node[K, V], []byte, error) {
	level, body, err := readUvarint(body)
	if err != nil {
		return nil, nil, &SerializationError{Op: "decode level", Err: err}
	}

	numKeys, body, err := readUvarint(body)
	if err != nil {
		return nil, nil, &SerializationError{Op: "decode key count", Err: err}
	}
	keys := make([]K, numKeys)
	for i := range keys {
		var kb []byte
		kb, body, err = readBytes(body)
		if err != nil {
			return nil, nil, &SerializationError{Op: "decode key", Err: err}
		}
		keys[i], err = c.decodeKey(kb)
		if err != nil {
			return nil, nil, &SerializationError{Op: "decode key", Err: err}
		}
	}

	numValues, body, err := readUvarint(body)
	if err != nil {
		return nil, nil, &SerializationError{Op: "decode value count", Err: err}
	}
	values := make([]V, numValues)
	for i := range values {
		var vb []byte
		vb, body, err = readBytes(body)
		if err != nil {
			return nil, nil, &SerializationError{Op: "decode value", Err: err}
		}
		values[i], err = c.decodeVal(vb)
		if err != nil {
			return nil, nil, &SerializationError{Op: "decode value", Err: err}
		}
	}

	numChildren, body, err := readUvarint(body)
	if err != nil {
		return nil, nil, &SerializationError{Op: "decode child count", Err: err}
	}
	children := make([]Link[K, V], numChildren)
	for i := range children {
		var offset uint64
		offset, body, err = readUvarint(body)
		if err != nil {
			return nil, nil, &SerializationError{Op: "decode child offset", Err: err}
		}
		if len(body) < HashSize {
			return nil, nil, &SerializationError{Op: "decode child hash", Err: fmt.Errorf("short buffer")}
		}
		var h Hash
		copy(h[:], body[:HashSize])
		body = body[HashSize:]
		children[i] = onDisk[K, V](offset, h)
	}

	return &Node[K, V]{
		Level:    uint32(level),
		Keys:     keys,
		Values:   values,
		Children: children,
	}, body, nil
}

func appendUvarint(buf []byte, x uint64) []byte {
	tmp := make([]byte, varint.UvarintSize(x))
	varint.PutUvarint(tmp, x)
	return append(buf, tmp...)
}

func appendBytes(buf, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readUvarint(buf []byte) (uint64, []byte, error) {
	x, n, err := varint.FromUvarint(buf)
	if err != nil {
		return 0, nil, err
	}
	return x, buf[n:], nil
}

func readBytes(buf []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarint(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("short buffer: want %d bytes, have %d", n, len(rest))
	}
	return rest[:n], rest[n:], nil
}
