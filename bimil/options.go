package bimil

import (
	"crypto/rand"
	"io"
)

// Option configures a Document.
type Option func(*options)

type options struct {
	rand io.Reader
}

func newOptions(opts []Option) *options {
	o := &options{rand: rand.Reader}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRand sets the source of the password salt and the per-value salts.
// It defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(o *options) {
		o.rand = r
	}
}
