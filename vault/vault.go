// Package vault stores sealed password-safe documents by name in a
// storage.Repository.
//
// Every Put writes a new storage version using compare-and-swap, so two
// writers racing on the same document cannot silently overwrite each other.
// Superseded versions are kept as history. A VersionCache remembers the
// highest version seen for each document; reading an older one fails with
// ErrRollback.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jmcleod/bimil/bimil"
	"github.com/jmcleod/bimil/convert"
	"github.com/jmcleod/bimil/psafe"
	"github.com/jmcleod/bimil/storage"
)

const (
	kindDocument = "DOCUMENT"
	kindHistory  = "DOCUMENT_HISTORY"
)

// Store is a named collection of documents.
type Store struct {
	repo         storage.Repository
	namespace    string
	cache        VersionCache
	docOpts      []psafe.Option
	historyLimit int
}

// New returns a Store on repo.
//
// By default, it uses an in-memory version cache, which loses rollback
// protection across restarts. Long-lived stores should configure a
// persistent cache with WithVersionCache.
func New(repo storage.Repository, opts ...Option) *Store {
	s := &Store{
		repo:         repo,
		namespace:    DefaultNamespace,
		cache:        NewMemoryVersionCache(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the repository namespace the store writes to.
func (s *Store) Namespace() string {
	return s.namespace
}

func historyID(name string, version uint64) string {
	return fmt.Sprintf("%s:%020d", name, version)
}

func parseHistoryID(id string) (string, uint64, bool) {
	name, v, ok := strings.Cut(id, ":")
	if !ok {
		return "", 0, false
	}
	version, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return name, version, true
}

func isMissing(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound)
}

func (s *Store) current(name string) (*storage.Envelope, error) {
	env, err := s.repo.Get(s.namespace, kindDocument, name)
	if isMissing(err) {
		return nil, nil
	}
	return env, err
}

// Put seals doc and stores it under name, returning the new storage
// version. The document's HasChanged flag is cleared only when the write
// succeeds.
func (s *Store) Put(ctx context.Context, name string, doc *psafe.Document) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateName(name, "document name"); err != nil {
		return 0, err
	}

	prev, err := s.current(name)
	if err != nil {
		return 0, fmt.Errorf("reading %q: %w", name, err)
	}
	var expected uint64
	if prev != nil {
		expected = prev.Version
	}
	next := max(expected, s.cache.MaxVersionSeen(s.namespace, name)) + 1

	var prune []string
	if prev != nil && s.historyLimit > 0 {
		prune, err = s.historyToPrune(name)
		if err != nil {
			return 0, err
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	err = doc.Commit(func(env *storage.Envelope) error {
		env.Version = next
		return s.repo.Batch(s.namespace, func(tx storage.BatchTx) error {
			if prev != nil && s.historyLimit > 0 {
				if err := tx.Put(kindHistory, historyID(name, prev.Version), prev); err != nil {
					return err
				}
				for _, id := range prune {
					if err := tx.Delete(kindHistory, id); err != nil {
						return err
					}
				}
			}
			return tx.PutCAS(kindDocument, name, expected, env)
		})
	})
	if errors.Is(err, storage.ErrCASFailed) {
		return 0, fmt.Errorf("storing %q: %w", name, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("storing %q: %w", name, err)
	}

	if err := s.cache.SetMaxVersionSeen(s.namespace, name, next); err != nil {
		return 0, err
	}
	slog.Debug("document stored", slog.String("namespace", s.namespace), slog.String("name", name), slog.Uint64("version", next))
	return next, nil
}

// historyToPrune returns the oldest history ids that must go so that, after
// one more version is added, at most historyLimit remain.
func (s *Store) historyToPrune(name string) ([]string, error) {
	ids, err := s.historyIDs(name)
	if err != nil {
		return nil, err
	}
	over := len(ids) + 1 - s.historyLimit
	if over <= 0 {
		return nil, nil
	}
	return ids[:over], nil
}

func (s *Store) historyIDs(name string) ([]string, error) {
	all, err := s.repo.List(s.namespace, kindHistory)
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing history of %q: %w", name, err)
	}
	var ids []string
	for _, id := range all {
		if n, _, ok := parseHistoryID(id); ok && n == name {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get opens the current version of the document stored under name.
func (s *Store) Get(ctx context.Context, name string, passphrase []byte) (*psafe.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name, "document name"); err != nil {
		return nil, err
	}
	env, err := s.current(name)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", name, err)
	}
	if env == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}

	if seen := s.cache.MaxVersionSeen(s.namespace, name); env.Version < seen {
		slog.Warn("stored document is older than a version already seen",
			slog.String("name", name), slog.Uint64("stored", env.Version), slog.Uint64("seen", seen))
		return nil, ErrRollback
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := psafe.Open(env, passphrase, s.docOpts...)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetMaxVersionSeen(s.namespace, name, env.Version); err != nil {
		doc.Destroy()
		return nil, err
	}
	return doc, nil
}

// Version returns the current storage version of name.
func (s *Store) Version(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	env, err := s.current(name)
	if err != nil {
		return 0, fmt.Errorf("reading %q: %w", name, err)
	}
	if env == nil {
		return 0, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return env.Version, nil
}

// History returns the superseded versions of name, oldest first.
func (s *Store) History(ctx context.Context, name string) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.historyIDs(name)
	if err != nil {
		return nil, err
	}
	versions := make([]uint64, 0, len(ids))
	for _, id := range ids {
		_, v, _ := parseHistoryID(id)
		versions = append(versions, v)
	}
	return versions, nil
}

// GetVersion opens a superseded version of name. Old versions are opened
// read-only.
func (s *Store) GetVersion(ctx context.Context, name string, version uint64, passphrase []byte) (*psafe.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env, err := s.repo.Get(s.namespace, kindHistory, historyID(name, version))
	if isMissing(err) {
		return nil, fmt.Errorf("%q version %d: %w", name, version, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	opts := append(append([]psafe.Option{}, s.docOpts...), psafe.WithReadOnly())
	return psafe.Open(env, passphrase, opts...)
}

// List returns the names of all stored documents, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := s.repo.List(s.namespace, kindDocument)
	if isMissing(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return names, nil
}

// Delete removes name and its history.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name, "document name"); err != nil {
		return err
	}
	history, err := s.historyIDs(name)
	if err != nil {
		return err
	}
	err = s.repo.Batch(s.namespace, func(tx storage.BatchTx) error {
		if err := tx.Delete(kindDocument, name); err != nil {
			return err
		}
		for _, id := range history {
			if err := tx.Delete(kindHistory, id); err != nil {
				return err
			}
		}
		return nil
	})
	if isMissing(err) {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return err
}

// ImportLegacy reads a legacy container from r, converts it and stores the
// result under name. The converted document is protected by the same
// passphrase.
func (s *Store) ImportLegacy(ctx context.Context, name string, r io.Reader, passphrase []byte) (*psafe.Document, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := validateName(name, "document name"); err != nil {
		return nil, 0, err
	}
	legacy, err := bimil.Open(r, passphrase)
	if err != nil {
		return nil, 0, err
	}
	defer legacy.Close()

	doc, err := convert.FromLegacy(legacy, passphrase, s.docOpts...)
	if err != nil {
		return nil, 0, fmt.Errorf("converting %q: %w", name, err)
	}
	version, err := s.Put(ctx, name, doc)
	if err != nil {
		doc.Destroy()
		return nil, 0, err
	}
	slog.Info("legacy document imported", slog.String("name", name), slog.Int("entries", doc.Entries().Len()))
	return doc, version, nil
}
