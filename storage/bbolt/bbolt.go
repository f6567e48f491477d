// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/jmcleod/bimil/storage"
	"go.etcd.io/bbolt"
	bbolterrors "go.etcd.io/bbolt/errors"
)

// Store implements storage.Repository backed by a BBolt database. Each
// namespace is a bucket; envelopes are stored as JSON under "kind:id".
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// DB returns the underlying database, for components that keep their own
// buckets next to the repository's.
func (s *Store) DB() *bbolt.DB {
	return s.db
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

var reservedPrefix = []byte("__")

func recordKey(kind, id string) []byte {
	return []byte(kind + ":" + id)
}

func (s *Store) getBucket(tx *bbolt.Tx, namespace string) (*bbolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists([]byte(namespace))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) Put(namespace, kind, id string, envelope *storage.Envelope) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.getBucket(tx, namespace)
		if err != nil {
			return err
		}
		data, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		key := recordKey(kind, id)
		return b.Put(key, data)
	})
}

func (s *Store) Get(namespace, kind, id string) (*storage.Envelope, error) {
	var envelope storage.Envelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
		}
		key := recordKey(kind, id)
		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &envelope)
	})
	if err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (s *Store) Delete(namespace, kind, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
		}
		key := recordKey(kind, id)
		if b.Get(key) == nil {
			return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
		}
		return b.Delete(key)
	})
}

func (s *Store) List(namespace, kind string) ([]string, error) {
	var ids []string
	prefix := []byte(kind + ":")
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	slices.Sort(ids)
	return ids, err
}

func putCASInBucket(b *bbolt.Bucket, kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	key := recordKey(kind, id)
	existingData := b.Get(key)

	if expectedVersion == 0 {
		if existingData != nil {
			return storage.ErrCASFailed
		}
	} else {
		if existingData == nil {
			return storage.ErrCASFailed
		}
		var existing storage.Envelope
		if err := json.Unmarshal(existingData, &existing); err != nil {
			return err
		}
		if existing.Version != expectedVersion {
			return storage.ErrCASFailed
		}
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func (s *Store) PutCAS(namespace, kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.getBucket(tx, namespace)
		if err != nil {
			return err
		}
		return putCASInBucket(b, kind, id, expectedVersion, envelope)
	})
}

type boltBatchTx struct {
	bucket *bbolt.Bucket
}

func (tx *boltBatchTx) Put(kind, id string, envelope *storage.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	key := recordKey(kind, id)
	return tx.bucket.Put(key, data)
}

func (tx *boltBatchTx) PutCAS(kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	return putCASInBucket(tx.bucket, kind, id, expectedVersion, envelope)
}

func (tx *boltBatchTx) Delete(kind, id string) error {
	key := recordKey(kind, id)
	if tx.bucket.Get(key) == nil {
		return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
	}
	return tx.bucket.Delete(key)
}

func (s *Store) Batch(namespace string, fn func(tx storage.BatchTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.getBucket(tx, namespace)
		if err != nil {
			return err
		}
		return fn(&boltBatchTx{bucket: b})
	})
}

// ListNamespaces returns the name of every namespace bucket. Buckets whose
// name starts with "__" belong to other components sharing the database and
// are skipped.
func (s *Store) ListNamespaces() ([]string, error) {
	var namespaces []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if bytes.HasPrefix(name, reservedPrefix) {
				return nil
			}
			namespaces = append(namespaces, string(name))
			return nil
		})
	})
	return namespaces, err
}

// DeleteNamespace drops a namespace bucket and every record in it.
func (s *Store) DeleteNamespace(namespace string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(namespace)); err != nil {
			if errors.Is(err, bbolterrors.ErrBucketNotFound) {
				return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
			}
			return err
		}
		return nil
	})
}
