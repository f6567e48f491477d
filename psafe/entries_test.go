package psafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryCollectionLookup(t *testing.T) {
	doc := newTestDocument(t, "p")
	entries := doc.Entries()

	l, err := entries.GetOrCreate("Mail")
	require.NoError(t, err)
	assert.Equal(t, LookupCreated, l.Status)
	assert.Equal(t, "Mail", l.Entry.Title())
	assert.True(t, l.Entry.Owned())

	again, err := entries.GetOrCreate("MAIL")
	require.NoError(t, err)
	assert.Equal(t, LookupFound, again.Status)
	assert.Same(t, l.Entry, again.Entry)

	grouped, err := entries.GetOrCreateInGroup("Work", "Mail")
	require.NoError(t, err)
	assert.Equal(t, LookupCreated, grouped.Status)
	assert.NotSame(t, l.Entry, grouped.Entry)
	assert.Equal(t, GroupPath("Work"), grouped.Entry.Group())

	found, ok := entries.FindInGroup("work", "mail")
	require.True(t, ok)
	assert.Same(t, grouped.Entry, found)

	assert.True(t, entries.HasTitle("mail"))
	assert.True(t, entries.HasGroupTitle("WORK", "Mail"))
	assert.False(t, entries.HasGroupTitle("Home", "Mail"))
	assert.Equal(t, 2, entries.Len())

	r, err := entries.Record("Mail", RecordUserName)
	require.NoError(t, err)
	require.NoError(t, r.SetText("me"))
	assert.Equal(t, "me", l.Entry.UserName())

	r, err = entries.GroupRecord("Work", "Mail", RecordUserName)
	require.NoError(t, err)
	require.NoError(t, r.SetText("work-me"))
	assert.Equal(t, "work-me", grouped.Entry.UserName())
}

// A record removal by title must leave the entry in place and never create
// new entries.
func TestEntryCollectionRemoveRecord(t *testing.T) {
	doc := newTestDocument(t, "p")
	entries := doc.Entries()

	e, err := entries.Get("C")
	require.NoError(t, err)
	require.NoError(t, e.SetGroup("Test"))
	assert.Equal(t, GroupPath("Test"), e.Group())

	removed, err := entries.RemoveRecord("C", RecordGroup)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, e.Group())
	assert.True(t, entries.HasTitle("C"))

	removed, err = entries.RemoveRecord("Nope", RecordGroup)
	require.NoError(t, err)
	assert.False(t, removed)
	removed, err = entries.RemoveGroupRecord("G", "Nope", RecordGroup)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, entries.Len())

	removed, err = entries.RemoveTitle("c")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, entries.Len())
	assert.False(t, e.Owned())
}

func TestEntryCollectionMutations(t *testing.T) {
	doc := newTestDocument(t, "p")
	entries := doc.Entries()

	a, _ := NewTitledEntry("a")
	b, _ := NewTitledEntry("b")
	c, _ := NewTitledEntry("c")

	t.Run("AddRangeIsAllOrNothing", func(t *testing.T) {
		assert.ErrorIs(t, entries.AddRange(a, b, a), ErrOwnership)
		assert.Zero(t, entries.Len())
		assert.False(t, a.Owned())

		require.NoError(t, entries.AddRange(a, b))
		assert.Equal(t, 2, entries.Len())
	})

	t.Run("Insert", func(t *testing.T) {
		require.NoError(t, entries.Insert(0, c))
		assert.Same(t, c, entries.At(0))
		d, _ := NewTitledEntry("d")
		assert.ErrorIs(t, entries.Insert(10, d), ErrOutOfRange)
	})

	t.Run("Set", func(t *testing.T) {
		d, _ := NewTitledEntry("d")
		require.NoError(t, entries.Set(0, d))
		assert.False(t, c.Owned())
		assert.True(t, d.Owned())
		assert.Equal(t, 2, entries.IndexOf(b))
		assert.ErrorIs(t, entries.Set(1, b), ErrOwnership)
	})

	t.Run("RemoveAtAndClear", func(t *testing.T) {
		require.NoError(t, entries.RemoveAt(0))
		assert.Equal(t, 2, entries.Len())
		assert.ErrorIs(t, entries.RemoveAt(5), ErrOutOfRange)

		require.NoError(t, entries.Clear())
		assert.Zero(t, entries.Len())
		assert.False(t, a.Owned())
		assert.False(t, b.Owned())
	})
}

func TestEntryCollectionSort(t *testing.T) {
	doc := newTestDocument(t, "p")
	entries := doc.Entries()

	add := func(group GroupPath, title string) *Entry {
		e, err := NewGroupedEntry(group, title)
		require.NoError(t, err)
		require.NoError(t, entries.Add(e))
		return e
	}
	add("b", "x")
	first := add("", "dup")
	add("", "Z")
	add("A", "y")
	second := add("", "DUP")
	add("", "a")

	entries.Sort()

	var got []string
	for _, e := range entries.Entries() {
		got = append(got, string(e.Group())+"/"+e.Title())
	}
	assert.Equal(t, []string{"/a", "/dup", "/DUP", "/Z", "A/y", "b/x"}, got)
	assert.Less(t, entries.IndexOf(first), entries.IndexOf(second), "sort must be stable")
}

func TestEntryCollectionSortPunctuation(t *testing.T) {
	doc := newTestDocument(t, "p")
	entries := doc.Entries()
	for _, title := range []string{"_x", "abc", "[b]", "Zed"} {
		addEntry(t, doc, title)
	}

	entries.Sort()

	var got []string
	for _, e := range entries.Entries() {
		got = append(got, e.Title())
	}
	// Titles compare upper-cased, so letters come before [ \ ] ^ _ and `.
	assert.Equal(t, []string{"abc", "Zed", "[b]", "_x"}, got)
}

func TestChangeNotification(t *testing.T) {
	changes := 0
	doc := newTestDocument(t, "p", WithChangeHandler(func() { changes++ }))
	assert.False(t, doc.HasChanged())

	e := addEntry(t, doc, "n")
	assert.True(t, doc.HasChanged())
	assert.Positive(t, changes)

	before := changes
	require.NoError(t, e.SetTitle("n"))
	assert.Equal(t, before, changes, "no-op write must not notify")

	require.NoError(t, e.SetTitle("m"))
	assert.Greater(t, changes, before)
}
