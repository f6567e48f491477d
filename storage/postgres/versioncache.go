package postgres

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/bimil/vault"
)

// VersionCache implements vault.VersionCache backed by PostgreSQL.
//
// Reads come from an in-memory map loaded at construction; writes persist
// to the version_cache table first and then update the map.
type VersionCache struct {
	pool  *pgxpool.Pool
	mu    sync.RWMutex
	cache map[cacheKey]uint64
}

type cacheKey struct {
	namespace string
	name      string
}

var _ vault.VersionCache = (*VersionCache)(nil)

const upsertVersionSQL = `INSERT INTO version_cache (namespace, name, max_version) VALUES ($1, $2, $3)
	ON CONFLICT (namespace, name) DO UPDATE SET max_version = EXCLUDED.max_version`

// NewVersionCache returns a persistent version cache backed by PostgreSQL.
func NewVersionCache(ctx context.Context, pool *pgxpool.Pool) (*VersionCache, error) {
	c := &VersionCache{
		pool:  pool,
		cache: make(map[cacheKey]uint64),
	}

	rows, err := pool.Query(ctx, `SELECT namespace, name, max_version FROM version_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			k       cacheKey
			version int64
		)
		if err := rows.Scan(&k.namespace, &k.name, &version); err != nil {
			return nil, err
		}
		c.cache[k] = uint64(version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *VersionCache) MaxVersionSeen(namespace, name string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache[cacheKey{namespace, name}]
}

// SetMaxVersionSeen persists version for the document. It returns
// vault.ErrRollback if version is lower than the stored value.
func (c *VersionCache) SetMaxVersionSeen(namespace, name string, version uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey{namespace, name}
	if version < c.cache[k] {
		return vault.ErrRollback
	}

	if _, err := c.pool.Exec(context.Background(), upsertVersionSQL, namespace, name, int64(version)); err != nil {
		return err
	}

	c.cache[k] = version
	return nil
}
