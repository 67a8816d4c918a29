// Package pagestore implements the page-aligned, append-only node store
// backing a Merkle Search Tree: a single file with a reserved page-0
// header plus a sequence of page-aligned, length-prefixed node records,
// fronted by a bounded in-memory cache keyed by file offset.
package pagestore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// File is the minimum storage backend a Store needs. *os.File satisfies
// it directly.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Truncate(size int64) error
	Sync() error
}

const defaultCacheSize = 4096

// Store is a page-aligned append log plus an offset-keyed node cache. It
// is safe for concurrent use: reads may proceed in parallel with each
// other (positional I/O, no shared cursor), while cache mutation is
// serialized by an internal reader/writer lock and file growth is
// serialized by an internal write lock, matching the single-writer/
// multi-reader model in spec.md §5.
type Store[N any] struct {
	decode func([]byte) (N, error)
	hashOf func(N) Hash
	logger *zap.Logger

	file       File
	removeOnClose string // non-empty for NewTemporary

	cacheMu sync.RWMutex
	cache   *lru.Cache[uint64, N]

	appendMu  sync.Mutex
	appendPos uint64 // next free, page-aligned offset; 0 until initialized
}

// Config holds construction-time options, shared across all N
// instantiations of Store since neither field depends on the node type.
type Config struct {
	Logger    *zap.Logger
	CacheSize int
}

// Option configures a Store at construction time.
type Option func(*Config)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithCacheSize bounds the number of decoded nodes kept resident. The
// default is 4096 entries.
func WithCacheSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.CacheSize = size
		}
	}
}

// Open opens (creating if necessary) the file at path and returns a Store
// over it. decode parses a raw record body into a node; hashOf computes
// that node's canonical content hash, used to verify integrity on every
// read (spec.md §4.1).
func Open[N any](path string, decode func([]byte) (N, error), hashOf func(N) Hash, opts ...Option) (*Store[N], error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s: %w", path, err)
	}
	s, err := newStore[N](f, "", decode, hashOf, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// OpenTemporary behaves like Open but against a freshly created temporary
// file, which is removed from the filesystem when Close is called.
func OpenTemporary[N any](decode func([]byte) (N, error), hashOf func(N) Hash, opts ...Option) (*Store[N], error) {
	f, err := os.CreateTemp("", "file-mst-*.db")
	if err != nil {
		return nil, fmt.Errorf("pagestore: create temp file: %w", err)
	}
	s, err := newStore[N](f, f.Name(), decode, hashOf, opts...)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return s, nil
}

func newStore[N any](f *os.File, removeOnClose string, decode func([]byte) (N, error), hashOf func(N) Hash, opts ...Option) (*Store[N], error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pagestore: stat: %w", err)
	}
	size := info.Size()
	if size < PageSize {
		if err := f.Truncate(PageSize); err != nil {
			return nil, fmt.Errorf("pagestore: grow header page: %w", err)
		}
		size = PageSize
	}

	cfg := Config{Logger: zap.NewNop(), CacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := lru.New[uint64, N](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("pagestore: allocate cache: %w", err)
	}

	s := &Store[N]{
		decode:        decode,
		hashOf:        hashOf,
		logger:        cfg.Logger,
		file:          f,
		removeOnClose: removeOnClose,
		cache:         cache,
		appendPos:     alignUp(uint64(size)),
	}
	return s, nil
}

func alignUp(pos uint64) uint64 {
	if rem := pos % PageSize; rem != 0 {
		pos += PageSize - rem
	}
	return pos
}

// Append serializes body as a new node record: a 4-byte little-endian
// length prefix followed by body, page-aligned on both ends, and returns
// the offset at which the length prefix was written.
func (s *Store[N]) Append(body []byte) (uint64, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	offset := s.appendPos

	record := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(record, uint32(len(body)))
	copy(record[4:], body)

	if _, err := s.file.WriteAt(record, int64(offset)); err != nil {
		return 0, fmt.Errorf("pagestore: write record at offset %d: %w", offset, err)
	}

	s.appendPos = alignUp(offset + uint64(len(record)))
	return offset, nil
}

// Read reads the record at offset, decodes it, and verifies its content
// hash against expectedHash. A cache hit skips the I/O and the hash check
// entirely, since only Read populates the cache, and only after the
// node's hash has been verified.
func (s *Store[N]) Read(offset uint64, expectedHash Hash) (N, error) {
	var zero N

	if node, ok := s.cacheLookup(offset); ok {
		return node, nil
	}

	var lenBuf [4]byte
	if _, err := s.file.ReadAt(lenBuf[:], int64(offset)); err != nil {
		return zero, fmt.Errorf("pagestore: read length at offset %d: %w", offset, err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == 0 {
		return zero, &CorruptionError{Offset: offset, Reason: "zero-length record"}
	}

	body := make([]byte, length)
	if _, err := s.file.ReadAt(body, int64(offset)+4); err != nil {
		return zero, fmt.Errorf("pagestore: read body at offset %d: %w", offset, err)
	}

	node, err := s.decode(body)
	if err != nil {
		return zero, &CorruptionError{Offset: offset, Reason: "deserialization failed", Err: err}
	}

	if actual := s.hashOf(node); actual != expectedHash {
		s.logger.Warn("pagestore: hash mismatch on read",
			zap.Uint64("offset", offset),
			zap.String("expected", expectedHash.String()),
			zap.String("actual", actual.String()),
		)
		return zero, &CorruptionError{Offset: offset, Reason: "hash mismatch"}
	}

	s.cacheMu.Lock()
	s.cache.Add(offset, node)
	s.cacheMu.Unlock()

	return node, nil
}

// CacheLookup returns a previously materialized node for offset, if one
// is still resident, without touching the file.
func (s *Store[N]) CacheLookup(offset uint64) (N, bool) {
	return s.cacheLookup(offset)
}

func (s *Store[N]) cacheLookup(offset uint64) (N, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Get(offset)
}

// WriteHeader publishes (rootOffset, rootHash) as the tree's committed
// root in the page-0 header.
func (s *Store[N]) WriteHeader(rootOffset uint64, rootHash Hash) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	buf := encodeHeader(rootOffset, rootHash)
	if _, err := s.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("pagestore: write header: %w", err)
	}
	return nil
}

// ReadHeader reads the page-0 header. ok is false, with no error, when
// the tree is empty (header absent or all-zero).
func (s *Store[N]) ReadHeader() (rootOffset uint64, rootHash Hash, ok bool, err error) {
	buf := make([]byte, PageSize)
	if _, err := s.file.ReadAt(buf, 0); err != nil && err != io.EOF {
		return 0, Hash{}, false, fmt.Errorf("pagestore: read header: %w", err)
	}
	return decodeHeader(buf)
}

// Flush commits the store's contents to stable storage.
func (s *Store[N]) Flush() error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("pagestore: sync: %w", err)
	}
	return nil
}

// Close releases the underlying file. Stores opened with OpenTemporary
// remove their backing file.
func (s *Store[N]) Close() error {
	err := s.file.Close()
	if s.removeOnClose != "" {
		if rmErr := os.Remove(s.removeOnClose); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}
