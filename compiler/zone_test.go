package compiler

import (
	"testing"

	"github.com/brimdata/semq/compiler/model"
	"github.com/stretchr/testify/assert"
)

func TestZone(t *testing.T) {
	z := NewZone[int]()
	at := &model.Location{URL: "a.malloy"}
	z.Reference("b", at)
	z.Reference("a", nil)
	z.Reference("b", &model.Location{URL: "other.malloy"})
	assert.Equal(t, []string{"a", "b"}, z.Needs())
	assert.Same(t, at, z.Get("b").FirstReference)

	z.Define("a", 1)
	z.DefineError("b", "boom")
	assert.Empty(t, z.Needs())
	assert.Equal(t, ZoneEntry[int]{Status: ZonePresent, Value: 1}, z.Get("a"))
	e := z.Get("b")
	assert.Equal(t, ZoneError, e.Status)
	assert.Equal(t, "boom", e.Message)

	// Unknown keys read as referenced.
	assert.Equal(t, ZoneReferenced, z.Get("c").Status)
}

func TestZoneDefineBeforeReference(t *testing.T) {
	z := NewZone[string]()
	z.Define("k", "v")
	z.Reference("k", &model.Location{URL: "x"})
	assert.Empty(t, z.Needs())
	assert.Equal(t, "v", z.Get("k").Value)
	assert.Equal(t, "x", z.Get("k").FirstReference.URL)
}
