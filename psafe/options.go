package psafe

import (
	"time"

	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/protect"
)

// Option configures documents, entries and records.
type Option func(*options)

type options struct {
	keyring     *protect.Keyring
	kdf         util.Argon2idParams
	now         func() time.Time
	onChange    func()
	readOnly    bool
	application string
}

func newOptions(opts []Option) *options {
	o := &options{
		kdf:         util.DefaultArgon2idParams(),
		now:         time.Now,
		application: DefaultApplication,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.keyring == nil {
		o.keyring = protect.Default()
	}
	return o
}

// WithKeyring sets the keyring used to protect field values in memory.
// Default: protect.Default().
func WithKeyring(k *protect.Keyring) Option {
	return func(o *options) {
		o.keyring = k
	}
}

// WithKDFParams sets the Argon2id parameters used when saving.
func WithKDFParams(params util.Argon2idParams) Option {
	return func(o *options) {
		o.kdf = params
	}
}

// WithClock overrides the time source used for access and modification stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithChangeHandler registers a callback invoked every time the document is
// marked as changed.
func WithChangeHandler(fn func()) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// WithReadOnly opens or creates the document in read-only mode.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithApplication sets the value written to the "what performed last save" header.
func WithApplication(name string) Option {
	return func(o *options) {
		o.application = name
	}
}
