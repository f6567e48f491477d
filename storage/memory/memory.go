// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jmcleod/bimil/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for tests and for documents that never need to outlive the process.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.Envelope
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.Envelope)}
}

func makeKey(kind, id string) string {
	return kind + ":" + id
}

func cloneEnvelope(env *storage.Envelope) *storage.Envelope {
	if env == nil {
		return nil
	}
	cp := *env
	cp.Salt = slices.Clone(env.Salt)
	cp.Nonce = slices.Clone(env.Nonce)
	cp.Ciphertext = slices.Clone(env.Ciphertext)
	return &cp
}

func (r *Repository) Put(namespace, kind, id string, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putLocked(namespace, kind, id, envelope)
}

func (r *Repository) putLocked(namespace, kind, id string, envelope *storage.Envelope) error {
	if _, ok := r.data[namespace]; !ok {
		r.data[namespace] = make(map[string]*storage.Envelope)
	}
	r.data[namespace][makeKey(kind, id)] = cloneEnvelope(envelope)
	return nil
}

func (r *Repository) Get(namespace, kind, id string) (*storage.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(namespace, kind, id)
}

func (r *Repository) getLocked(namespace, kind, id string) (*storage.Envelope, error) {
	records, ok := r.data[namespace]
	if !ok {
		return nil, fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	env, ok := records[makeKey(kind, id)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
	}
	return cloneEnvelope(env), nil
}

// List returns the ids stored under kind in sorted order.
func (r *Repository) List(namespace, kind string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	prefix := kind + ":"
	for k := range r.data[namespace] {
		if id, ok := strings.CutPrefix(k, prefix); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *Repository) Delete(namespace, kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(namespace, kind, id)
}

func (r *Repository) deleteLocked(namespace, kind, id string) error {
	records, ok := r.data[namespace]
	if !ok {
		return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	k := makeKey(kind, id)
	if _, ok := records[k]; !ok {
		return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
	}
	delete(records, k)
	return nil
}

func (r *Repository) PutCAS(namespace, kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putCASLocked(namespace, kind, id, expectedVersion, envelope)
}

func (r *Repository) putCASLocked(namespace, kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	existing, err := r.getLocked(namespace, kind, id)
	if err != nil {
		if expectedVersion != 0 {
			return storage.ErrCASFailed
		}
		return r.putLocked(namespace, kind, id, envelope)
	}
	if existing.Version != expectedVersion {
		return storage.ErrCASFailed
	}
	return r.putLocked(namespace, kind, id, envelope)
}

// Batch executes fn within a batch transaction. On error, all writes are rolled back.
func (r *Repository) Batch(namespace string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshot(namespace)

	tx := &memoryBatchTx{repo: r, namespace: namespace}
	if err := fn(tx); err != nil {
		r.restore(namespace, snapshot)
		return err
	}
	return nil
}

func (r *Repository) snapshot(namespace string) map[string]*storage.Envelope {
	original, ok := r.data[namespace]
	if !ok {
		return nil
	}
	cp := make(map[string]*storage.Envelope, len(original))
	for k, v := range original {
		cp[k] = cloneEnvelope(v)
	}
	return cp
}

func (r *Repository) restore(namespace string, snapshot map[string]*storage.Envelope) {
	if snapshot == nil {
		delete(r.data, namespace)
	} else {
		r.data[namespace] = snapshot
	}
}

type memoryBatchTx struct {
	repo      *Repository
	namespace string
}

func (tx *memoryBatchTx) Put(kind, id string, envelope *storage.Envelope) error {
	return tx.repo.putLocked(tx.namespace, kind, id, envelope)
}

func (tx *memoryBatchTx) PutCAS(kind, id string, expectedVersion uint64, envelope *storage.Envelope) error {
	return tx.repo.putCASLocked(tx.namespace, kind, id, expectedVersion, envelope)
}

func (tx *memoryBatchTx) Delete(kind, id string) error {
	return tx.repo.deleteLocked(tx.namespace, kind, id)
}
