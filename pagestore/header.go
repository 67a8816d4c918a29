package pagestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PageSize is the fixed page alignment unit: page 0 is reserved for the
// file header, and every node record begins at a multiple of PageSize.
const PageSize = 4096

const headerVersion uint32 = 1

var headerMagic = [8]byte{'F', 'M', 'S', 'T', 'v', '0', '0', '1'}

const (
	headerOffMagic = 0
	headerOffVer   = headerOffMagic + 8
	headerOffRoot  = headerOffVer + 4
	headerOffHash  = headerOffRoot + 8
	headerUsedLen  = headerOffHash + HashSize
)

// encodeHeader lays out page 0: magic(8) | version(4 LE) | root_offset(8 LE)
// | root_hash(32) | zero-pad to PageSize.
func encodeHeader(rootOffset uint64, rootHash Hash) []byte {
	buf := make([]byte, PageSize)
	copy(buf[headerOffMagic:], headerMagic[:])
	binary.LittleEndian.PutUint32(buf[headerOffVer:], headerVersion)
	binary.LittleEndian.PutUint64(buf[headerOffRoot:], rootOffset)
	copy(buf[headerOffHash:], rootHash[:])
	return buf
}

// decodeHeader parses page 0. present is false (with no error) when the
// page is entirely zero-filled, which is the state of a freshly created
// file: that means "empty tree," not corruption.
func decodeHeader(buf []byte) (rootOffset uint64, rootHash Hash, present bool, err error) {
	if len(buf) < headerUsedLen {
		return 0, Hash{}, false, fmt.Errorf("pagestore: short header read (%d bytes)", len(buf))
	}
	if isAllZero(buf[:headerUsedLen]) {
		return 0, Hash{}, false, nil
	}
	if !bytes.Equal(buf[headerOffMagic:headerOffMagic+8], headerMagic[:]) {
		return 0, Hash{}, false, &CorruptionError{Offset: 0, Reason: "bad header magic"}
	}
	version := binary.LittleEndian.Uint32(buf[headerOffVer:])
	if version != headerVersion {
		return 0, Hash{}, false, &VersionMismatchError{Found: version}
	}
	rootOffset = binary.LittleEndian.Uint64(buf[headerOffRoot:])
	copy(rootHash[:], buf[headerOffHash:headerOffHash+HashSize])
	return rootOffset, rootHash, true, nil
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
