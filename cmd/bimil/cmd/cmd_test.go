package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/bimil/bimil"
	"github.com/jmcleod/bimil/psafe"
)

const testPassphrase = "correct horse"

// resetFlags restores every flag to its default so executions do not leak
// into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--kdf-profile", "interactive"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points config lookups and the default store at a temporary
// directory.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	t.Chdir(tmp)
	t.Setenv(passphraseEnv, testPassphrase)
	return tmp
}

func writeLegacy(t *testing.T, path string) {
	t.Helper()
	legacy, err := bimil.New([]byte(testPassphrase))
	require.NoError(t, err)
	defer legacy.Close()

	it, err := legacy.AddItem("Mail", 0)
	require.NoError(t, err)
	cat, err := it.CategoryRecord()
	require.NoError(t, err)
	require.NoError(t, cat.Value.SetText("Personal"))
	_, err = it.AddTextRecord("User name", "bob")
	require.NoError(t, err)
	_, err = it.AddPasswordRecord("Password", "pw1")
	require.NoError(t, err)
	_, err = it.AddTextRecord("Key", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	_, err = it.AddTextRecord("Misc", "x")
	require.NoError(t, err)

	_, err = legacy.AddItem("Bank", 0)
	require.NoError(t, err)
	require.NoError(t, legacy.SaveFile(path))
}

func TestConvertAndInspect(t *testing.T) {
	tmp := isolate(t)
	legacyPath := filepath.Join(tmp, "old.bimil")
	docPath := filepath.Join(tmp, "new.psafe")
	writeLegacy(t, legacyPath)

	out, err := run(t, "convert", legacyPath, docPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted 2 entries")

	_, err = run(t, "convert", legacyPath, docPath)
	assert.ErrorContains(t, err, "already exists")
	_, err = run(t, "convert", "--force", legacyPath, docPath)
	require.NoError(t, err)

	t.Run("List", func(t *testing.T) {
		out, err := run(t, "list", "--sort", docPath)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "TITLE")
		assert.Contains(t, lines[1], "Bank")
		assert.Contains(t, lines[2], "Mail")
		assert.Contains(t, lines[2], "bob")

		out, err = run(t, "list", "--group", "personal", docPath)
		require.NoError(t, err)
		assert.NotContains(t, out, "Bank")
	})

	t.Run("Show", func(t *testing.T) {
		out, err := run(t, "show", docPath, "mail")
		require.NoError(t, err)
		assert.Contains(t, out, "User name: bob")
		assert.Contains(t, out, "Password: "+masked)
		assert.Contains(t, out, "Two-factor key: present")
		assert.Contains(t, out, "Misc: x")

		out, err = run(t, "show", "--reveal", docPath, "Mail")
		require.NoError(t, err)
		assert.Contains(t, out, "Password: pw1")

		_, err = run(t, "show", docPath, "Missing")
		assert.ErrorContains(t, err, "no entry")
	})

	t.Run("OTP", func(t *testing.T) {
		now = func() time.Time { return time.Unix(59, 0) }
		t.Cleanup(func() { now = time.Now })

		out, err := run(t, "otp", docPath, "Mail")
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6} \(1s left\)\n$`, out)

		_, err = run(t, "otp", docPath, "Bank")
		assert.Error(t, err)
	})

	t.Run("Autotype", func(t *testing.T) {
		out, err := run(t, "autotype", docPath, "Mail")
		require.NoError(t, err)
		assert.Equal(t, "{UserName}\n{Tab}\n{Password}\n{Enter}\n", out)

		out, err = run(t, "autotype", "--reveal", docPath, "Mail")
		require.NoError(t, err)
		assert.Equal(t, "b\no\nb\n{Tab}\np\nw\n1\n{Enter}\n", out)
	})

	t.Run("WrongPassphrase", func(t *testing.T) {
		t.Setenv(passphraseEnv, "wrong")
		_, err := run(t, "list", docPath)
		assert.ErrorIs(t, err, psafe.ErrCannotParse)
	})
}

func TestConvertNewPassphrase(t *testing.T) {
	tmp := isolate(t)
	legacyPath := filepath.Join(tmp, "old.bimil")
	docPath := filepath.Join(tmp, "new.psafe")
	writeLegacy(t, legacyPath)

	t.Setenv(newPassphraseEnv, "other")
	_, err := run(t, "convert", "--new-passphrase", legacyPath, docPath)
	require.NoError(t, err)

	f, err := os.Open(docPath)
	require.NoError(t, err)
	defer f.Close()
	doc, err := psafe.Load(f, []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Entries().Len())
}

func TestStoreCommands(t *testing.T) {
	tmp := isolate(t)
	legacyPath := filepath.Join(tmp, "old.bimil")
	writeLegacy(t, legacyPath)
	storePath := filepath.Join(tmp, "data", "store.db")
	store := []string{"--store-backend", "bbolt", "--store-path", storePath}

	out, err := run(t, append(store, "store", "import", "personal", legacyPath)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 entries as personal (version 1)")

	out, err = run(t, append(store, "store", "list")...)
	require.NoError(t, err)
	assert.Equal(t, "personal\tv1\n", out)

	out, err = run(t, append(store, "store", "get", "personal")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Mail")

	docPath := filepath.Join(tmp, "exported.psafe")
	_, err = run(t, append(store, "store", "get", "personal", "--out", docPath)...)
	require.NoError(t, err)

	out, err = run(t, append(store, "store", "put", "personal", docPath)...)
	require.NoError(t, err)
	assert.Contains(t, out, "version 2")

	out, err = run(t, append(store, "store", "history", "personal")...)
	require.NoError(t, err)
	assert.Equal(t, "v1\n", out)

	_, err = run(t, append(store, "store", "delete", "personal")...)
	require.NoError(t, err)
	out, err = run(t, append(store, "store", "list")...)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, append(store, "store", "delete", "personal")...)
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	tmp := isolate(t)
	path := filepath.Join(tmp, "bimil.yaml")

	_, err := run(t, "--store-backend", "memory", "config", "init", "--path", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: memory")

	_, err = run(t, "config", "init", "--path", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "--store-backend", "redis", "config", "init", "--path", path, "--force")
	assert.ErrorContains(t, err, "unknown store.backend")
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestInGroup(t *testing.T) {
	assert.True(t, inGroup("Personal", "personal"))
	assert.True(t, inGroup("Personal.Mail", "Personal"))
	assert.False(t, inGroup("Personal", "Personal.Mail"))
	assert.False(t, inGroup("Work", "Personal"))
}
