package mst

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Le-Maz/file-mst/pagestore"
)

// Tree is a persistent, authenticated key-value map backed by a single
// page-aligned append log. A Tree mediates its own mutation and is not
// safe to share across goroutines without external synchronization,
// matching the single-writer/multi-reader model of the file it wraps.
type Tree[K, V any] struct {
	ctx    ctx[K, V]
	root   Link[K, V]
	logger *zap.Logger
}

// Config holds construction-time options for a Tree.
type Config struct {
	Logger    *zap.Logger
	CacheSize int
}

// Option configures a Tree at construction time.
type Option func(*Config)

// WithLogger attaches a structured logger to the tree and its backing
// page store. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithCacheSize bounds the number of decoded nodes the page store keeps
// resident. The default is 4096 entries.
func WithCacheSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.CacheSize = size
		}
	}
}

func resolveConfig(opts []Option) Config {
	cfg := Config{Logger: zap.NewNop(), CacheSize: 0}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (cfg Config) storeOptions() []pagestore.Option {
	var opts []pagestore.Option
	opts = append(opts, pagestore.WithLogger(cfg.Logger))
	if cfg.CacheSize > 0 {
		opts = append(opts, pagestore.WithCacheSize(cfg.CacheSize))
	}
	return opts
}

// Open opens (creating if missing) the file at path as a Tree. If the
// file already carries a committed header, the tree's root starts as
// that header's OnDisk link; otherwise the tree starts empty.
func Open[K, V any](path string, keyCodec Codec[K], valCodec Codec[V], opts ...Option) (*Tree[K, V], error) {
	cfg := resolveConfig(opts)
	t := newTree[K, V](keyCodec, valCodec, cfg)

	store, err := pagestore.Open[*Node[K, V]](path, t.ctx.decodeNode, hashOfNode[K, V], cfg.storeOptions()...)
	if err != nil {
		return nil, err
	}
	t.ctx.store = store

	if err := t.loadHeaderRoot(); err != nil {
		store.Close()
		return nil, err
	}
	return t, nil
}

// NewTemporary opens a Tree over a freshly created temporary file that is
// removed from the filesystem when the Tree is closed.
func NewTemporary[K, V any](keyCodec Codec[K], valCodec Codec[V], opts ...Option) (*Tree[K, V], error) {
	cfg := resolveConfig(opts)
	t := newTree[K, V](keyCodec, valCodec, cfg)

	store, err := pagestore.OpenTemporary[*Node[K, V]](t.ctx.decodeNode, hashOfNode[K, V], cfg.storeOptions()...)
	if err != nil {
		return nil, err
	}
	t.ctx.store = store
	return t, nil
}

// LoadFromRoot opens path and sets the tree's root directly to the given
// OnDisk link, bypassing the file header. Resolution of the root (and
// integrity verification) is deferred until the first operation that
// actually needs it.
func LoadFromRoot[K, V any](path string, offset uint64, hash Hash, keyCodec Codec[K], valCodec Codec[V], opts ...Option) (*Tree[K, V], error) {
	cfg := resolveConfig(opts)
	t := newTree[K, V](keyCodec, valCodec, cfg)

	store, err := pagestore.Open[*Node[K, V]](path, t.ctx.decodeNode, hashOfNode[K, V], cfg.storeOptions()...)
	if err != nil {
		return nil, err
	}
	t.ctx.store = store
	t.root = onDisk[K, V](offset, hash)
	return t, nil
}

func newTree[K, V any](keyCodec Codec[K], valCodec Codec[V], cfg Config) *Tree[K, V] {
	return &Tree[K, V]{
		ctx: ctx[K, V]{
			encodeKey: keyCodec.Encode,
			decodeKey: keyCodec.Decode,
			encodeVal: valCodec.Encode,
			decodeVal: valCodec.Decode,
		},
		root:   loaded(emptyNode[K, V](0)),
		logger: cfg.Logger,
	}
}

// hashOfNode adapts Node's cached-hash accessor to pagestore's
// decode-time integrity-check callback shape.
func hashOfNode[K, V any](n *Node[K, V]) Hash {
	return n.Hash()
}

func (t *Tree[K, V]) loadHeaderRoot() error {
	offset, hash, present, err := t.ctx.store.ReadHeader()
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	t.root = onDisk[K, V](offset, hash)
	return nil
}

// Insert adds or updates key. It returns the previous value if key was
// already present.
func (t *Tree[K, V]) Insert(key K, value V) (*V, error) {
	level, err := t.ctx.levelOf(key)
	if err != nil {
		return nil, err
	}
	newRoot, prior, err := t.ctx.insertInto(t.root, key, value, level)
	if err != nil {
		return nil, err
	}
	t.root = newRoot
	return prior, nil
}

// Remove deletes key, returning its prior value if it was present.
func (t *Tree[K, V]) Remove(key K) (*V, error) {
	newRoot, deleted, prior, err := t.ctx.removeFrom(t.root, key)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, nil
	}
	t.root = newRoot
	return prior, nil
}

// Get returns the value associated with key, or nil if key is absent.
func (t *Tree[K, V]) Get(key K) (*V, error) {
	return t.ctx.get(t.root, key)
}

// Contains reports whether key is present, without materializing its
// value.
func (t *Tree[K, V]) Contains(key K) (bool, error) {
	return t.ctx.contains(t.root, key)
}

// RootHash returns the tree's current content digest: the zero Hash for
// an empty tree, otherwise the cached hash of the (possibly unresolved)
// root link.
func (t *Tree[K, V]) RootHash() Hash {
	return t.root.Hash()
}

// Close releases the tree's backing file. It does not implicitly commit;
// callers must call Commit first to persist pending mutations.
func (t *Tree[K, V]) Close() error {
	if t.ctx.store == nil {
		return nil
	}
	return t.ctx.store.Close()
}

func (t *Tree[K, V]) String() string {
	return fmt.Sprintf("mst.Tree{root=%s}", t.RootHash())
}
