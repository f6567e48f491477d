package psafe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmcleod/bimil/internal/util"
)

func fastKDF(t *testing.T) util.Argon2idParams {
	t.Helper()
	p, err := util.Argon2idProfile(util.KDFProfileInteractive)
	require.NoError(t, err)
	return p
}

// testClock is a settable time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestDocument(t *testing.T, passphrase string, opts ...Option) *Document {
	t.Helper()
	opts = append([]Option{WithKDFParams(fastKDF(t))}, opts...)
	doc, err := New([]byte(passphrase), opts...)
	require.NoError(t, err)
	return doc
}

func addEntry(t *testing.T, doc *Document, title string) *Entry {
	t.Helper()
	l, err := doc.Entries().GetOrCreate(title)
	require.NoError(t, err)
	require.Equal(t, LookupCreated, l.Status)
	return l.Entry
}
