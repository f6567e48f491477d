package bimil

import (
	"encoding/binary"
	"fmt"
	"slices"
)

const (
	systemName     = "Name"
	systemCategory = "Category"
)

// Item is an ordered list of records. The Name and Category system records
// are created on first access.
type Item struct {
	doc       *Document
	iconIndex int
	records   []*Record
}

// IconIndex is kept in memory only; the container format does not store it.
func (it *Item) IconIndex() int {
	return it.iconIndex
}

func (it *Item) SetIconIndex(i int) {
	it.iconIndex = i
}

func (it *Item) Name() string {
	r, err := it.NameRecord()
	if err != nil {
		return ""
	}
	return r.Value.String()
}

func (it *Item) Category() string {
	r, err := it.CategoryRecord()
	if err != nil {
		return ""
	}
	return r.Value.String()
}

func (it *Item) NameRecord() (*Record, error) {
	return it.systemRecord(systemName)
}

func (it *Item) CategoryRecord() (*Record, error) {
	return it.systemRecord(systemCategory)
}

// systemRecord returns the first System record whose key matches exactly,
// appending an empty one when there is none.
func (it *Item) systemRecord(key string) (*Record, error) {
	for _, r := range it.records {
		if r.Format != FormatSystem {
			continue
		}
		k, err := r.Key.Text()
		if err != nil {
			return nil, err
		}
		if k == key {
			return r, nil
		}
	}
	return it.AddRecord(key, "", FormatSystem)
}

// Records returns the item's records in order.
func (it *Item) Records() []*Record {
	return slices.Clone(it.records)
}

func (it *Item) AddRecord(key, value string, format RecordFormat) (*Record, error) {
	r, err := newRecord(it.doc, key, value, format)
	if err != nil {
		return nil, err
	}
	it.records = append(it.records, r)
	return r, nil
}

func (it *Item) AddTextRecord(key, value string) (*Record, error) {
	return it.AddRecord(key, value, FormatText)
}

func (it *Item) AddMultilineTextRecord(key, value string) (*Record, error) {
	return it.AddRecord(key, value, FormatMultilineText)
}

func (it *Item) AddMonospacedTextRecord(key, value string) (*Record, error) {
	return it.AddRecord(key, value, FormatMonospacedText)
}

func (it *Item) AddURLRecord(key, value string) (*Record, error) {
	return it.AddRecord(key, value, FormatURL)
}

func (it *Item) AddPasswordRecord(key, value string) (*Record, error) {
	return it.AddRecord(key, value, FormatPassword)
}

// ClearNonSystemRecords removes every record except the System ones.
func (it *Item) ClearNonSystemRecords() {
	it.records = slices.DeleteFunc(it.records, func(r *Record) bool {
		return r.Format != FormatSystem
	})
}

// marshal encodes the records as
// [key len][value len][format][key ciphertext][value ciphertext], all
// integers big-endian.
func (it *Item) marshal() []byte {
	var b []byte
	for _, r := range it.records {
		b = binary.BigEndian.AppendUint32(b, uint32(len(r.Key.data)))
		b = binary.BigEndian.AppendUint32(b, uint32(len(r.Value.data)))
		b = binary.BigEndian.AppendUint32(b, uint32(r.Format))
		b = append(b, r.Key.data...)
		b = append(b, r.Value.data...)
	}
	return b
}

// parseItem decodes an item payload. Every cell is decrypted once to make
// sure it belongs to this document.
func parseItem(d *Document, buf []byte) (*Item, error) {
	if len(buf) < 4 {
		return nil, errItemSize
	}
	it := &Item{doc: d}
	pos := 0
	for pos < len(buf) {
		if len(buf)-pos < 12 {
			return nil, errItemContent
		}
		keyLen := int64(int32(binary.BigEndian.Uint32(buf[pos:])))
		valueLen := int64(int32(binary.BigEndian.Uint32(buf[pos+4:])))
		format := RecordFormat(int32(binary.BigEndian.Uint32(buf[pos+8:])))
		pos += 12
		if keyLen < 0 || valueLen < 0 || keyLen+valueLen > int64(len(buf)-pos) {
			return nil, errLengthOverflow
		}
		key := &Value{doc: d, data: slices.Clone(buf[pos : pos+int(keyLen)])}
		pos += int(keyLen)
		value := &Value{doc: d, data: slices.Clone(buf[pos : pos+int(valueLen)])}
		pos += int(valueLen)
		for _, v := range []*Value{key, value} {
			if _, err := v.Text(); err != nil {
				return nil, fmt.Errorf("decrypting record: %w", err)
			}
		}
		it.records = append(it.records, &Record{Key: key, Value: value, Format: format})
	}
	return it, nil
}
