package vault

import "github.com/jmcleod/bimil/psafe"

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "default"

// DefaultHistoryLimit is the number of superseded versions kept per document.
const DefaultHistoryLimit = 10

// Option configures a Store.
type Option func(*Store)

// WithNamespace scopes the store to a namespace of the repository.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.namespace = namespace
	}
}

// WithVersionCache sets the cache used for rollback detection.
func WithVersionCache(cache VersionCache) Option {
	return func(s *Store) {
		s.cache = cache
	}
}

// WithDocumentOptions sets the options applied to every document the store
// opens or imports.
func WithDocumentOptions(opts ...psafe.Option) Option {
	return func(s *Store) {
		s.docOpts = append(s.docOpts, opts...)
	}
}

// WithHistoryLimit sets how many superseded versions are kept per document.
// Zero disables history.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		s.historyLimit = max(n, 0)
	}
}
