package mst

import (
	"lukechampine.com/blake3"

	"github.com/Le-Maz/file-mst/pagestore"
)

// HashSize is the width of a canonical node digest, in bytes.
const HashSize = pagestore.HashSize

// Hash is a BLAKE3-256 content digest. The zero Hash represents the empty
// tree. It is an alias of pagestore.Hash so that node code and page-store
// code agree on a single type without pagestore importing this package.
type Hash = pagestore.Hash

func sum(b []byte) Hash {
	return Hash(blake3.Sum256(b))
}

// maxLevel bounds the probabilistic level function; no key can sit above
// this depth regardless of hash value.
const maxLevel = 32

// computeLevel derives the MST level for a key from the leading run of
// zero base-16 digits (nibbles) in BLAKE3(encoded), capped at maxLevel.
//
// This is the nibble-counting form of the level function described in
// spec.md's "Level function" design note, ported directly from the
// reference Rust implementation's Node::calc_level.
func computeLevel(encodedKey []byte) uint32 {
	digest := sum(encodedKey)
	var level uint32
	for _, b := range digest {
		if b == 0x00 {
			level += 2
			continue
		}
		if b&0xF0 == 0x00 {
			level++
		}
		break
	}
	if level > maxLevel {
		level = maxLevel
	}
	return level
}
