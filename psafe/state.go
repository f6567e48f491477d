package psafe

import "time"

// docState is the document-owned cell that entries, records and headers
// consult for read-only status and change tracking. Entries hold this cell
// rather than a reference to their collection or document.
type docState struct {
	readOnly    bool
	trackAccess bool
	trackModify bool
	changed     bool
	now         func() time.Time
	onChange    func()
}

func newDocState(o *options) *docState {
	return &docState{
		readOnly:    o.readOnly,
		trackAccess: true,
		trackModify: true,
		now:         o.now,
		onChange:    o.onChange,
	}
}

func (s *docState) markChanged() {
	s.changed = true
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *docState) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}
