package psafe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHistoryParse(t *testing.T) {
	e, err := NewEntry()
	require.NoError(t, err)
	r, err := e.Record(RecordPasswordHistory)
	require.NoError(t, err)
	require.NoError(t, r.SetText("10502"+"5f5e1000"+"0003"+"abc"+"5f5e1001"+"0002"+"éy"))

	h := e.PasswordHistory()
	assert.True(t, h.Enabled())
	assert.Equal(t, 5, h.MaximumCount())
	require.Equal(t, 2, h.Len())
	assert.Equal(t, PasswordHistoryItem{FirstUsed: time.Unix(1600000000, 0).UTC(), Password: "abc"}, h.Items()[0])
	assert.Equal(t, "éy", h.Items()[1].Password)

	t.Run("KeepsItemsBeforeMalformedData", func(t *testing.T) {
		require.NoError(t, r.SetText("10302"+"5f5e1000"+"0001"+"a"+"zzzzzzzz"))
		h := e.PasswordHistory()
		require.Equal(t, 1, h.Len())
		assert.Equal(t, "a", h.Items()[0].Password)
	})

	t.Run("ShortTextIsDisabled", func(t *testing.T) {
		require.NoError(t, r.SetText("1"))
		h := e.PasswordHistory()
		assert.False(t, h.Enabled())
		assert.Equal(t, DefaultHistoryMaximumCount, h.MaximumCount())
		assert.Zero(t, h.Len())
	})
}

func TestPasswordHistoryTracksChanges(t *testing.T) {
	clock := &testClock{now: time.Unix(1600000000, 0)}
	doc := newTestDocument(t, "p", WithClock(clock.Now))
	e := addEntry(t, doc, "site")

	require.NoError(t, e.SetPassword("one"))
	require.NoError(t, e.PasswordHistory().SetEnabled(true))
	assert.Equal(t, "10300", e.text(RecordPasswordHistory))

	for _, p := range []string{"two", "two", "three", "four", "five"} {
		clock.now = clock.now.Add(time.Minute)
		require.NoError(t, e.SetPassword(p))
	}

	h := e.PasswordHistory()
	require.Equal(t, 3, h.Len())
	var got []string
	for _, item := range h.Items() {
		got = append(got, item.Password)
	}
	assert.Equal(t, []string{"two", "three", "four"}, got)
	assert.Equal(t, time.Unix(1600000000+60, 0).UTC(), h.Items()[0].FirstUsed)

	t.Run("MaximumCount", func(t *testing.T) {
		require.NoError(t, h.SetMaximumCount(1))
		require.NoError(t, e.SetPassword("six"))
		items := e.PasswordHistory().Items()
		require.Len(t, items, 1)
		assert.Equal(t, "five", items[0].Password)

		assert.ErrorIs(t, h.SetMaximumCount(0), ErrOutOfRange)
		assert.ErrorIs(t, h.SetMaximumCount(256), ErrOutOfRange)
	})

	t.Run("DisablingClears", func(t *testing.T) {
		h := e.PasswordHistory()
		require.NoError(t, h.SetEnabled(false))
		require.NoError(t, e.SetPassword("seven"))
		h = e.PasswordHistory()
		assert.False(t, h.Enabled())
		assert.Zero(t, h.Len())
	})
}
