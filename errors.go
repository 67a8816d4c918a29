package mst

import (
	"errors"
	"fmt"

	"github.com/Le-Maz/file-mst/pagestore"
)

// ErrKeyNotFound names the absence of a key. No operation in this package
// returns it: Get, Contains and Remove report absence via a nil/false
// result instead, matching spec.md §6's "optional" return contract.
var ErrKeyNotFound = errors.New("mst: key not found")

// ErrInvalidTree is returned when a node decoded from disk has value or
// child counts that disagree with its key count (values != keys, or
// children neither 0 nor keys+1). The page store reports it wrapped in a
// CorruptionError. Key order and key levels of a decoded node are not
// checked.
var ErrInvalidTree = errors.New("mst: invalid tree structure")

// CorruptionError indicates the on-disk representation of a node did not
// match its expected digest, length, or shape. Per spec.md §7, this is
// fatal for the affected subtree: callers should not continue traversing
// through the offset named here. It is the same type the page store
// itself raises, re-exported here so callers of this package never need
// to import pagestore directly just to catch it.
type CorruptionError = pagestore.CorruptionError

// VersionMismatchError indicates the file header declares a version this
// build does not know how to read.
type VersionMismatchError = pagestore.VersionMismatchError

// SerializationError wraps a Codec failure with the operation that
// triggered it.
type SerializationError struct {
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("mst: serialization failed during %s: %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
