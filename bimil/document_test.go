package bimil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/bimil/internal/util"
)

var testPassword = []byte("Password")

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	doc, err := New(testPassword)
	require.NoError(t, err)
	t.Cleanup(doc.Close)
	return doc
}

func saveDocument(t *testing.T, doc *Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, doc.Save(&buf))
	return buf.Bytes()
}

// decryptContainer returns the outer plaintext of a saved container.
func decryptContainer(t *testing.T, data, password []byte) []byte {
	t.Helper()
	require.Greater(t, len(data), saltSize)
	m := util.DerivePBKDF2SHA1(password, data[:saltSize], iterations, keySize+ivSize)
	plain, err := util.DecryptCBC(data[saltSize:], m[:keySize], m[keySize:])
	require.NoError(t, err)
	return plain
}

// reencrypt seals plain under the salt of an existing container.
func reencrypt(t *testing.T, data, plain, password []byte) []byte {
	t.Helper()
	m := util.DerivePBKDF2SHA1(password, data[:saltSize], iterations, keySize+ivSize)
	ct, err := util.EncryptCBC(plain, m[:keySize], m[keySize:])
	require.NoError(t, err)
	return append(bytes.Clone(data[:saltSize]), ct...)
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := newTestDocument(t)
	it, err := doc.AddItem("Test", 0)
	require.NoError(t, err)
	cat, err := it.CategoryRecord()
	require.NoError(t, err)
	require.NoError(t, cat.Value.SetText("Personal"))
	_, err = it.AddTextRecord("User name", "alice")
	require.NoError(t, err)
	_, err = it.AddPasswordRecord("Password", "s3cret")
	require.NoError(t, err)
	_, err = it.AddURLRecord("URL", "https://example.com")
	require.NoError(t, err)
	_, err = it.AddMultilineTextRecord("Notes", "line 1\r\nline 2")
	require.NoError(t, err)
	_, err = doc.AddItem("Second", 3)
	require.NoError(t, err)

	data := saveDocument(t, doc)

	got, err := Open(bytes.NewReader(data), testPassword)
	require.NoError(t, err)
	defer got.Close()

	items := got.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Test", items[0].Name())
	assert.Equal(t, "Personal", items[0].Category())
	assert.Equal(t, "Second", items[1].Name())

	type kv struct {
		key, value string
		format     RecordFormat
	}
	var records []kv
	for _, r := range items[0].Records() {
		records = append(records, kv{r.Key.String(), r.Value.String(), r.Format})
	}
	assert.Equal(t, []kv{
		{"Name", "Test", FormatSystem},
		{"Category", "Personal", FormatSystem},
		{"User name", "alice", FormatText},
		{"Password", "s3cret", FormatPassword},
		{"URL", "https://example.com", FormatURL},
		{"Notes", "line 1\r\nline 2", FormatMultilineText},
	}, records)

	t.Run("EmptyDocument", func(t *testing.T) {
		empty := newTestDocument(t)
		got, err := Open(bytes.NewReader(saveDocument(t, empty)), testPassword)
		require.NoError(t, err)
		defer got.Close()
		assert.Empty(t, got.Items())
	})
}

func TestDocumentLayout(t *testing.T) {
	doc := newTestDocument(t)
	it, err := doc.AddItem("Test", 0)
	require.NoError(t, err)
	_, err = it.AddTextRecord("User name", "alice")
	require.NoError(t, err)

	data := saveDocument(t, doc)
	plain := decryptContainer(t, data, testPassword)

	require.Equal(t, []byte("A128"), plain[:4])
	require.Equal(t, []byte("A128"), plain[len(plain)-4:])

	itemLen := int(binary.BigEndian.Uint32(plain[4:]))
	assert.Equal(t, len(plain)-12, itemLen, "single item fills the frame")

	payload := plain[8 : 8+itemLen]
	var formats []RecordFormat
	for pos := 0; pos < len(payload); {
		keyLen := int(binary.BigEndian.Uint32(payload[pos:]))
		valueLen := int(binary.BigEndian.Uint32(payload[pos+4:]))
		formats = append(formats, RecordFormat(binary.BigEndian.Uint32(payload[pos+8:])))
		// Each cell is one CBC ciphertext of salt + text.
		assert.Zero(t, keyLen%16)
		assert.Zero(t, valueLen%16)
		assert.GreaterOrEqual(t, keyLen, 32)
		pos += 12 + keyLen + valueLen
	}
	assert.Equal(t, []RecordFormat{FormatSystem, FormatText}, formats)
}

func TestDocumentOpenFailures(t *testing.T) {
	doc := newTestDocument(t)
	it, err := doc.AddItem("Test", 0)
	require.NoError(t, err)
	_, err = it.AddTextRecord("User name", "alice")
	require.NoError(t, err)
	data := saveDocument(t, doc)
	plain := decryptContainer(t, data, testPassword)

	tests := []struct {
		name     string
		data     []byte
		password []byte
	}{
		{"WrongPassword", data, []byte("password")},
		{"Empty", nil, testPassword},
		{"SaltOnly", data[:saltSize], testPassword},
		{"Truncated", data[:len(data)-16], testPassword},
		{"PrimaryIdentifier", reencrypt(t, data, append([]byte("B128"), plain[4:]...), testPassword), testPassword},
		{"SecondaryIdentifier", reencrypt(t, data, append(bytes.Clone(plain[:len(plain)-4]), "A129"...), testPassword), testPassword},
		{"ItemLengthOverflow", reencrypt(t, data, func() []byte {
			p := bytes.Clone(plain)
			binary.BigEndian.PutUint32(p[4:], uint32(len(p)))
			return p
		}(), testPassword), testPassword},
		{"ItemTooShort", reencrypt(t, data, []byte("A128\x00\x00\x00\x02xyA128"), testPassword), testPassword},
		{"ItemContent", reencrypt(t, data, []byte("A128\x00\x00\x00\x05abcdeA128"), testPassword), testPassword},
		{"Garbage", bytes.Repeat([]byte{0x42}, 64), testPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(bytes.NewReader(tt.data), tt.password)
			assert.ErrorIs(t, err, ErrCannotParse)
		})
	}
}

func TestDocumentSaveWithPassword(t *testing.T) {
	doc := newTestDocument(t)
	it, err := doc.AddItem("Test", 0)
	require.NoError(t, err)
	_, err = it.AddPasswordRecord("Password", "s3cret")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.SaveWithPassword(&buf, []byte("other")))

	_, err = Open(bytes.NewReader(buf.Bytes()), testPassword)
	assert.ErrorIs(t, err, ErrCannotParse)

	got, err := Open(bytes.NewReader(buf.Bytes()), []byte("other"))
	require.NoError(t, err)
	defer got.Close()
	require.Len(t, got.Items(), 1)
	records := got.Items()[0].Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Test", got.Items()[0].Name())
	assert.Equal(t, "s3cret", records[1].Value.String())

	// The original keeps its password.
	_, err = Open(bytes.NewReader(saveDocument(t, doc)), testPassword)
	assert.NoError(t, err)
}

func TestDocumentSaveFile(t *testing.T) {
	doc := newTestDocument(t)
	_, err := doc.AddItem("Test", 0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.bimil")
	require.NoError(t, doc.SaveFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := OpenFile(path, testPassword)
	require.NoError(t, err)
	defer got.Close()
	require.Len(t, got.Items(), 1)
	assert.Equal(t, "Test", got.Items()[0].Name())

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.bimil"), testPassword)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDocumentClose(t *testing.T) {
	doc, err := New(testPassword)
	require.NoError(t, err)
	it, err := doc.AddItem("Test", 0)
	require.NoError(t, err)

	doc.Close()

	_, err = doc.AddItem("Other", 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, doc.Save(&bytes.Buffer{}), ErrClosed)
	assert.ErrorIs(t, doc.SaveWithPassword(&bytes.Buffer{}, testPassword), ErrClosed)
	_, err = it.Records()[0].Value.Text()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, it.Name())
}

func TestDocumentRemoveItem(t *testing.T) {
	doc := newTestDocument(t)
	a, err := doc.AddItem("A", 0)
	require.NoError(t, err)
	b, err := doc.AddItem("B", 0)
	require.NoError(t, err)

	assert.True(t, doc.RemoveItem(a))
	assert.False(t, doc.RemoveItem(a))
	assert.Equal(t, []*Item{b}, doc.Items())
}
