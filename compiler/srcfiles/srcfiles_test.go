package srcfiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpan(t *testing.T) {
	l := NewList("file:///a.semq", "source: a is\n  db.table('x')\n")
	start, end := l.Span(15, 17)
	assert.Equal(t, 2, start.Line)
	assert.Equal(t, 3, start.Column)
	assert.Equal(t, 2, end.Line)
	assert.Equal(t, 5, end.Column)
}

func TestErrorFormat(t *testing.T) {
	l := NewList("", "run: a -> { group_by: x }")
	l.AddError("'x' is not defined", 22, 23)
	l.AddWarning("unused", 0, 3)
	require.True(t, l.HasErrors())
	err := l.Error()
	require.Error(t, err)
	expected := "'x' is not defined at line 1, column 23:\nrun: a -> { group_by: x }\n                      ~"
	assert.Equal(t, expected, err.Error())
	assert.Len(t, l.Diagnostics(), 2)
}

func TestEmptyText(t *testing.T) {
	l := NewList("u", "")
	l.AddError("empty", 0, 0)
	start, _ := l.Span(0, 0)
	assert.Equal(t, 1, start.Line)
	assert.Equal(t, 1, start.Column)
	assert.Contains(t, l.Error().Error(), "empty in u at line 1, column 1")
}

func TestOffset(t *testing.T) {
	l := NewList("u", "ab\ncdef\ng")
	assert.Equal(t, 0, l.Offset(0, 0))
	assert.Equal(t, 5, l.Offset(1, 2))
	assert.Equal(t, 8, l.Offset(2, 0))
	assert.Equal(t, -1, l.Offset(3, 0))
}
