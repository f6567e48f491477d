package psafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupPath(t *testing.T) {
	g := NewGroupPath("Internet", "", "example.com", "Mail")
	assert.Equal(t, GroupPath(`Internet.example\.com.Mail`), g)
	assert.Equal(t, []string{"Internet", "example.com", "Mail"}, g.Segments())
	assert.Equal(t, "example.com", g.Segment(1))
	assert.Empty(t, g.Segment(3))
	assert.Empty(t, g.Segment(-1))

	assert.Equal(t, GroupPath(`Internet.example\.com`), g.Up())
	assert.Equal(t, GroupPath(""), GroupPath("Top").Up())
	assert.Equal(t, GroupPath(`Internet.example\.com.Mail.Work`), g.Append("Work"))

	assert.True(t, g.Equal(`INTERNET.Example\.com.mail`))
	assert.False(t, g.Equal("Internet"))

	assert.Empty(t, GroupPath("").Segments())
	assert.Equal(t, []string{`a\b`}, GroupPath(`a\b`).Segments())
	assert.Equal(t, []string{`a\`}, GroupPath(`a\`).Segments())
}
