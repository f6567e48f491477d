// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The records table uses a composite primary key (namespace, kind, id) that
// mirrors the key space used by the BBolt and in-memory backends. Envelope
// fields are stored as individual columns so salt, nonce and ciphertext land
// in native BYTEA storage.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/bimil/storage"
)

const (
	envelopeColumns = `ver, scheme, kdf_time, kdf_memory, kdf_parallelism, kdf_key_len, salt, nonce, ciphertext, version`

	upsertSQL = `INSERT INTO records (namespace, kind, id, ` + envelopeColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (namespace, kind, id)
		 DO UPDATE SET ver = $4, scheme = $5, kdf_time = $6, kdf_memory = $7, kdf_parallelism = $8,
		   kdf_key_len = $9, salt = $10, nonce = $11, ciphertext = $12, version = $13`

	insertSQL = `INSERT INTO records (namespace, kind, id, ` + envelopeColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateSQL = `UPDATE records SET ver = $4, scheme = $5, kdf_time = $6, kdf_memory = $7, kdf_parallelism = $8,
		   kdf_key_len = $9, salt = $10, nonce = $11, ciphertext = $12, version = $13
		 WHERE namespace = $1 AND kind = $2 AND id = $3`

	deleteSQL = `DELETE FROM records WHERE namespace = $1 AND kind = $2 AND id = $3`
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Pool returns the underlying connection pool, for sharing with the version
// cache.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func envelopeArgs(namespace, kind, id string, env *storage.Envelope) []any {
	return []any{
		namespace, kind, id,
		env.Ver, env.Scheme,
		int64(env.KDF.Time), int64(env.KDF.MemoryKiB), int16(env.KDF.Parallelism), int64(env.KDF.KeyLen),
		env.Salt, env.Nonce, env.Ciphertext, int64(env.Version),
	}
}

func scanEnvelope(row pgx.Row) (*storage.Envelope, error) {
	var (
		env                        storage.Envelope
		kdfTime, kdfMemory, keyLen int64
		parallelism                int16
		version                    int64
	)
	err := row.Scan(&env.Ver, &env.Scheme, &kdfTime, &kdfMemory, &parallelism, &keyLen,
		&env.Salt, &env.Nonce, &env.Ciphertext, &version)
	if err != nil {
		return nil, err
	}
	env.KDF.Time = uint32(kdfTime)
	env.KDF.MemoryKiB = uint32(kdfMemory)
	env.KDF.Parallelism = uint8(parallelism)
	env.KDF.KeyLen = uint32(keyLen)
	env.Version = uint64(version)
	return &env, nil
}

func (s *Store) Put(namespace, kind, id string, envelope *storage.Envelope) error {
	_, err := s.pool.Exec(context.Background(), upsertSQL, envelopeArgs(namespace, kind, id, envelope)...)
	return err
}

func (s *Store) Get(namespace, kind, id string) (*storage.Envelope, error) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT `+envelopeColumns+` FROM records WHERE namespace = $1 AND kind = $2 AND id = $3`,
		namespace, kind, id)
	env, err := scanEnvelope(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundError(context.Background(), s.pool, namespace, kind, id)
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (s *Store) List(namespace, kind string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id FROM records WHERE namespace = $1 AND kind = $2 ORDER BY id`,
		namespace, kind)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListNamespaces returns every namespace holding at least one record.
func (s *Store) ListNamespaces() ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT DISTINCT namespace FROM records ORDER BY namespace`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Delete(namespace, kind, id string) error {
	tag, err := s.pool.Exec(context.Background(), deleteSQL, namespace, kind, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundError(context.Background(), s.pool, namespace, kind, id)
	}
	return nil
}

// DeleteNamespace removes every record in a namespace.
func (s *Store) DeleteNamespace(namespace string) error {
	tag, err := s.pool.Exec(context.Background(),
		`DELETE FROM records WHERE namespace = $1`, namespace)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	return nil
}

func (s *Store) PutCAS(namespace, kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	tx, err := s.pool.Begin(context.Background())
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background()) //nolint:errcheck

	if err := putCASInTx(context.Background(), tx, namespace, kind, id, expectedVersion, envelope); err != nil {
		return err
	}
	return tx.Commit(context.Background())
}

func (s *Store) Batch(namespace string, fn func(tx storage.BatchTx) error) error {
	pgTx, err := s.pool.Begin(context.Background())
	if err != nil {
		return err
	}
	defer pgTx.Rollback(context.Background()) //nolint:errcheck

	if err := fn(&pgBatchTx{tx: pgTx, namespace: namespace}); err != nil {
		return err
	}
	return pgTx.Commit(context.Background())
}

type pgBatchTx struct {
	tx        pgx.Tx
	namespace string
}

var _ storage.BatchTx = (*pgBatchTx)(nil)

func (btx *pgBatchTx) Put(kind, id string, envelope *storage.Envelope) error {
	_, err := btx.tx.Exec(context.Background(), upsertSQL, envelopeArgs(btx.namespace, kind, id, envelope)...)
	return err
}

func (btx *pgBatchTx) PutCAS(kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	return putCASInTx(context.Background(), btx.tx, btx.namespace, kind, id, expectedVersion, envelope)
}

func (btx *pgBatchTx) Delete(kind, id string) error {
	tag, err := btx.tx.Exec(context.Background(), deleteSQL, btx.namespace, kind, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// putCASInTx performs a compare-and-swap put within an existing transaction.
// It is used by both the top-level PutCAS and the batch PutCAS methods.
func putCASInTx(ctx context.Context, tx pgx.Tx, namespace, kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	var currentVersion int64
	err := tx.QueryRow(ctx,
		`SELECT version FROM records
		 WHERE namespace = $1 AND kind = $2 AND id = $3
		 FOR UPDATE`,
		namespace, kind, id).Scan(&currentVersion)

	if errors.Is(err, pgx.ErrNoRows) {
		if expectedVersion != 0 {
			return storage.ErrCASFailed
		}
		_, err = tx.Exec(ctx, insertSQL, envelopeArgs(namespace, kind, id, envelope)...)
		return err
	}
	if err != nil {
		return err
	}

	if expectedVersion == 0 || uint64(currentVersion) != expectedVersion {
		return storage.ErrCASFailed
	}

	_, err = tx.Exec(ctx, updateSQL, envelopeArgs(namespace, kind, id, envelope)...)
	return err
}

// querier abstracts both *pgxpool.Pool and pgx.Tx for shared queries.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// notFoundError distinguishes a missing namespace from a missing record, as
// the BBolt backend does.
func notFoundError(ctx context.Context, q querier, namespace, kind, id string) error {
	var exists bool
	_ = q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM records WHERE namespace = $1 LIMIT 1)`,
		namespace).Scan(&exists)
	if !exists {
		return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
}
