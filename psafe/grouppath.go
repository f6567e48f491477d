package psafe

import (
	"strings"

	"github.com/jmcleod/bimil/internal/util"
)

// GroupPath is a dot separated group hierarchy. A literal dot inside a
// segment is written as `\.`.
type GroupPath string

// NewGroupPath joins segments, escaping dots and skipping empty segments.
func NewGroupPath(segments ...string) GroupPath {
	var b strings.Builder
	for _, s := range segments {
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strings.ReplaceAll(s, ".", `\.`))
	}
	return GroupPath(b.String())
}

// Segments splits the path into unescaped segments.
func (g GroupPath) Segments() []string {
	if g == "" {
		return []string{}
	}
	var (
		segments []string
		current  strings.Builder
		escaped  bool
	)
	for _, r := range string(g) {
		switch {
		case escaped:
			if r != '.' {
				current.WriteByte('\\')
			}
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.':
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		current.WriteByte('\\')
	}
	return append(segments, current.String())
}

// Segment returns the i-th segment, or "" when out of range.
func (g GroupPath) Segment(i int) string {
	s := g.Segments()
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}

// Append returns the path extended by one segment.
func (g GroupPath) Append(segment string) GroupPath {
	return NewGroupPath(append(g.Segments(), segment)...)
}

// Up returns the parent path.
func (g GroupPath) Up() GroupPath {
	s := g.Segments()
	if len(s) <= 1 {
		return ""
	}
	return NewGroupPath(s[:len(s)-1]...)
}

// Equal compares paths case-insensitively.
func (g GroupPath) Equal(other GroupPath) bool {
	return util.EqualFold(string(g), string(other))
}

func (g GroupPath) String() string {
	return string(g)
}
