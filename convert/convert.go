// Package convert turns legacy Bimil containers into password safe documents.
package convert

import (
	"encoding/base32"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmcleod/bimil/bimil"
	"github.com/jmcleod/bimil/psafe"
)

const notesSeparator = "\r\n"

// keyTypes maps legacy record keys, compared case-insensitively, to record
// types.
var keyTypes = map[string]psafe.RecordType{
	"user name":       psafe.RecordUserName,
	"username":        psafe.RecordUserName,
	"user":            psafe.RecordUserName,
	"password":        psafe.RecordPassword,
	"notes":           psafe.RecordNotes,
	"url":             psafe.RecordURL,
	"web address":     psafe.RecordURL,
	"key":             psafe.RecordTwoFactorKey,
	"card number":     psafe.RecordCreditCardNumber,
	"expiration date": psafe.RecordCreditCardExpiration,
	"security code":   psafe.RecordCreditCardVerificationValue,
	"cvv":             psafe.RecordCreditCardVerificationValue,
	"cvv2":            psafe.RecordCreditCardVerificationValue,
	"cid":             psafe.RecordCreditCardVerificationValue,
	"csc":             psafe.RecordCreditCardVerificationValue,
	"pin":             psafe.RecordCreditCardPin,
}

// LookupKey returns the record type a legacy key converts to.
func LookupKey(key string) (psafe.RecordType, bool) {
	t, ok := keyTypes[strings.ToLower(key)]
	return t, ok
}

// FromLegacy builds a new document protected by passphrase holding one entry
// per legacy item. The legacy document is only read.
func FromLegacy(legacy *bimil.Document, passphrase []byte, opts ...psafe.Option) (*psafe.Document, error) {
	doc, err := psafe.New(passphrase, opts...)
	if err != nil {
		return nil, err
	}
	for _, item := range legacy.Items() {
		e, err := convertItem(item, opts)
		if err != nil {
			return nil, fmt.Errorf("converting %q: %w", item.Name(), err)
		}
		if err := doc.Entries().Add(e); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func convertItem(item *bimil.Item, opts []psafe.Option) (*psafe.Entry, error) {
	e, err := psafe.NewTitledEntry(item.Name(), opts...)
	if err != nil {
		return nil, err
	}
	if category := item.Category(); category != "" {
		if err := e.SetGroup(psafe.GroupPath(category)); err != nil {
			return nil, err
		}
	}
	records := e.Records()
	if _, err := records.RemoveType(psafe.RecordPassword); err != nil {
		return nil, err
	}

	// Notes lines keep legacy record order.
	var notes []string
	haveNotes := false
	for _, r := range item.Records() {
		if r.Format == bimil.FormatSystem {
			continue
		}
		key, err := r.Key.Text()
		if err != nil {
			return nil, err
		}
		value, err := r.Value.Text()
		if err != nil {
			return nil, err
		}
		line := key + ": " + value

		t, ok := LookupKey(key)
		if !ok {
			slog.Debug("legacy record not mapped", slog.String("key", key))
			if value != "" {
				notes = append(notes, line)
			}
			continue
		}
		if t == psafe.RecordNotes && !haveNotes {
			haveNotes = true
			if value != "" {
				notes = append(notes, value)
			}
			continue
		}
		if t == psafe.RecordNotes || records.Has(t) {
			notes = append(notes, line)
			continue
		}
		rec, err := psafe.NewRecord(t, opts...)
		if err != nil {
			return nil, err
		}
		if t == psafe.RecordTwoFactorKey {
			secret, err := DecodeTwoFactorKey(value)
			if err != nil {
				slog.Debug("legacy two-factor key not decodable", "error", err)
				notes = append(notes, line)
				continue
			}
			err = rec.SetBytes(secret)
			clear(secret)
			if err != nil {
				return nil, err
			}
		} else if err := rec.SetText(value); err != nil {
			return nil, err
		}
		if err := records.Add(rec); err != nil {
			return nil, err
		}
	}

	if len(notes) > 0 {
		if err := e.SetNotes(strings.Join(notes, notesSeparator)); err != nil {
			return nil, err
		}
	}
	if err := moveNotesLast(records); err != nil {
		return nil, err
	}
	return e, nil
}

func moveNotesLast(records *psafe.RecordCollection) error {
	notes, ok := records.Lookup(psafe.RecordNotes)
	if !ok {
		return nil
	}
	if _, err := records.Remove(notes); err != nil {
		return err
	}
	return records.Add(notes)
}

// DecodeTwoFactorKey decodes a base32 secret as shown by authenticator
// setup pages: case, spaces, dashes and padding are ignored.
func DecodeTwoFactorKey(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '=', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(s))
	if s == "" {
		return nil, fmt.Errorf("empty two-factor key")
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
}
