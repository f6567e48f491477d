// Package storage provides the storage abstraction layer for sealed documents.
package storage

import "errors"

var (
	// ErrCASFailed is returned when a compare-and-swap version check fails.
	ErrCASFailed = errors.New("CAS version mismatch")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNamespaceNotFound is returned when nothing was ever stored under a namespace.
	ErrNamespaceNotFound = errors.New("namespace not found")
)

// BatchTx provides Put and PutCAS within an atomic transaction.
// The namespace is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Put(kind string, id string, envelope *Envelope) error
	PutCAS(kind string, id string, expectedVersion uint64, envelope *Envelope) error
	Delete(kind string, id string) error
}

// Repository defines the interface for sealed record storage. Records are
// addressed by (namespace, kind, id).
type Repository interface {
	Put(namespace string, kind string, id string, envelope *Envelope) error
	Get(namespace string, kind string, id string) (*Envelope, error)
	List(namespace string, kind string) ([]string, error)
	Delete(namespace string, kind string, id string) error
	PutCAS(namespace string, kind string, id string, expectedVersion uint64, envelope *Envelope) error
	Batch(namespace string, fn func(tx BatchTx) error) error
}
