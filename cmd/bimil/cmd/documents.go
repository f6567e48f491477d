package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/psafe"
)

// documentOptions returns the psafe options implied by the configuration.
func documentOptions() ([]psafe.Option, error) {
	params, err := util.Argon2idProfile(cfg.KDF.Profile)
	if err != nil {
		return nil, err
	}
	return []psafe.Option{psafe.WithKDFParams(params)}, nil
}

func applyTracking(doc *psafe.Document) {
	doc.SetTrackAccess(cfg.Document.TrackAccess)
	doc.SetTrackModify(cfg.Document.TrackModify)
}

// openDocument prompts for the passphrase and opens the document at path.
func openDocument(cmd *cobra.Command, path string, opts ...psafe.Option) (*psafe.Document, error) {
	docOpts, err := documentOptions()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	passphrase, err := readPassphrase(cmd, "Passphrase: ")
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(passphrase)

	doc, err := psafe.Load(f, passphrase, append(docOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	applyTracking(doc)
	return doc, nil
}

// findEntry looks an entry up without creating it.
func findEntry(doc *psafe.Document, group, title string) (*psafe.Entry, error) {
	var (
		e  *psafe.Entry
		ok bool
	)
	if group != "" {
		e, ok = doc.Entries().FindInGroup(psafe.GroupPath(group), title)
	} else {
		e, ok = doc.Entries().Find(title)
	}
	if !ok {
		return nil, fmt.Errorf("no entry titled %q", title)
	}
	return e, nil
}

func saveDocumentFile(doc *psafe.Document, path string) error {
	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".bimil-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func checkOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}
	return nil
}
