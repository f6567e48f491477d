package psafe

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultHistoryMaximumCount is the number of passwords remembered when the
// history record does not say otherwise.
const DefaultHistoryMaximumCount = 3

// PasswordHistoryItem is one previously used password.
type PasswordHistoryItem struct {
	FirstUsed time.Time
	Password  string
}

// PasswordHistory is a view over an entry's PasswordHistory record. Changes
// are written back to the record immediately.
type PasswordHistory struct {
	records  *RecordCollection
	enabled  bool
	maxCount int
	items    []PasswordHistoryItem
}

func newPasswordHistory(records *RecordCollection) *PasswordHistory {
	h := &PasswordHistory{records: records, maxCount: DefaultHistoryMaximumCount}
	r, ok := records.Lookup(RecordPasswordHistory)
	if !ok {
		return h
	}
	text, _ := r.Text()
	h.parse([]rune(text))
	return h
}

// parse reads the history text, keeping every item decoded before the
// first malformed one.
func (h *PasswordHistory) parse(text []rune) {
	if len(text) < 5 {
		return
	}
	h.enabled = text[0] != '0'
	if n, err := strconv.ParseUint(string(text[1:3]), 16, 8); err == nil {
		h.maxCount = int(n)
	}
	count, err := strconv.ParseUint(string(text[3:5]), 16, 8)
	if err != nil {
		return
	}
	j := 5
	for range count {
		if len(text) < j+12 {
			return
		}
		secs, err := strconv.ParseUint(string(text[j:j+8]), 16, 32)
		if err != nil {
			return
		}
		length, err := strconv.ParseUint(string(text[j+8:j+12]), 16, 16)
		if err != nil {
			return
		}
		j += 12
		if len(text) < j+int(length) {
			return
		}
		h.items = append(h.items, PasswordHistoryItem{
			FirstUsed: time.Unix(int64(secs), 0).UTC(),
			Password:  string(text[j : j+int(length)]),
		})
		j += int(length)
	}
}

func (h *PasswordHistory) encode() string {
	var b strings.Builder
	if h.enabled {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	fmt.Fprintf(&b, "%02x%02x", h.maxCount, len(h.items))
	for _, item := range h.items {
		secs := item.FirstUsed.Unix()
		switch {
		case secs < 0:
			secs = 0
		case secs > int64(^uint32(0)):
			secs = int64(^uint32(0))
		}
		fmt.Fprintf(&b, "%08x%04x%s", secs, len([]rune(item.Password)), item.Password)
	}
	return b.String()
}

func (h *PasswordHistory) persist() error {
	r, err := h.records.Get(RecordPasswordHistory)
	if err != nil {
		return err
	}
	return r.SetText(h.encode())
}

func (h *PasswordHistory) Enabled() bool {
	return h.enabled
}

// SetEnabled toggles the history. Disabling discards remembered passwords.
func (h *PasswordHistory) SetEnabled(enabled bool) error {
	if h.enabled == enabled {
		return nil
	}
	h.enabled = enabled
	if !enabled {
		h.items = nil
	}
	return h.persist()
}

func (h *PasswordHistory) MaximumCount() int {
	return h.maxCount
}

// SetMaximumCount sets how many passwords are remembered (1 to 255).
func (h *PasswordHistory) SetMaximumCount(n int) error {
	if n < 1 || n > 255 {
		return fmt.Errorf("%w: maximum count must be between 1 and 255", ErrOutOfRange)
	}
	if h.maxCount == n {
		return nil
	}
	h.maxCount = n
	return h.persist()
}

func (h *PasswordHistory) Len() int {
	return len(h.items)
}

// Items returns the remembered passwords, oldest first.
func (h *PasswordHistory) Items() []PasswordHistoryItem {
	return slices.Clone(h.items)
}

func (h *PasswordHistory) Clear() error {
	h.items = nil
	return h.persist()
}

func (h *PasswordHistory) add(firstUsed time.Time, password string) error {
	if !h.enabled || password == "" {
		return nil
	}
	h.items = append(h.items, PasswordHistoryItem{FirstUsed: firstUsed.UTC(), Password: password})
	if over := len(h.items) - h.maxCount; over > 0 {
		h.items = slices.Delete(h.items, 0, over)
	}
	return h.persist()
}
