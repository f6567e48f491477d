package vault

import (
	"encoding/binary"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

// VersionCache tracks the highest storage version seen per document so that
// a repository serving an older copy can be detected.
type VersionCache interface {
	MaxVersionSeen(namespace, name string) uint64
	SetMaxVersionSeen(namespace, name string, version uint64) error
}

func cacheKey(namespace, name string) string {
	return namespace + "/" + name
}

// MemoryVersionCache is an in-memory implementation suitable for tests.
type MemoryVersionCache struct {
	mu       sync.RWMutex
	versions map[string]uint64
}

// NewMemoryVersionCache returns an in-memory version cache suitable for
// testing and single-process use.
func NewMemoryVersionCache() *MemoryVersionCache {
	return &MemoryVersionCache{
		versions: make(map[string]uint64),
	}
}

func (c *MemoryVersionCache) MaxVersionSeen(namespace, name string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[cacheKey(namespace, name)]
}

func (c *MemoryVersionCache) SetMaxVersionSeen(namespace, name string, version uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(namespace, name)
	if version < c.versions[key] {
		return ErrRollback
	}
	c.versions[key] = version
	return nil
}

var versionCacheBucket = []byte("__version_cache")

// BoltVersionCache persists the highest version seen in a dedicated BBolt
// bucket. Reads are served from memory; writes go to BBolt first.
type BoltVersionCache struct {
	db    *bbolt.DB
	mu    sync.RWMutex
	cache map[string]uint64
}

// NewBoltVersionCache returns a persistent version cache backed by a BBolt
// database. The database may be shared with a storage/bbolt repository.
func NewBoltVersionCache(db *bbolt.DB) (*BoltVersionCache, error) {
	c := &BoltVersionCache{
		db:    db,
		cache: make(map[string]uint64),
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(versionCacheBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				c.cache[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewBoltVersionCacheFromFile opens a BBolt database at path and returns a
// version cache stored in it.
func NewBoltVersionCacheFromFile(path string, options *bbolt.Options) (*BoltVersionCache, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBoltVersionCache(db)
}

// Close closes the underlying database.
func (c *BoltVersionCache) Close() error {
	return c.db.Close()
}

func (c *BoltVersionCache) MaxVersionSeen(namespace, name string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache[cacheKey(namespace, name)]
}

func (c *BoltVersionCache) SetMaxVersionSeen(namespace, name string, version uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(namespace, name)
	if version < c.cache[key] {
		return ErrRollback
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(versionCacheBucket)
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], version)
		return b.Put([]byte(key), buf[:])
	})
	if err != nil {
		return err
	}

	c.cache[key] = version
	return nil
}
