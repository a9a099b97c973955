package compiler

import (
	"slices"

	"github.com/brimdata/semq/compiler/model"
)

type ZoneStatus int

const (
	// ZoneReferenced means the key is needed and has not been supplied.
	ZoneReferenced ZoneStatus = iota
	ZonePresent
	ZoneError
)

type ZoneEntry[T any] struct {
	Status  ZoneStatus
	Value   T
	Message string
	// FirstReference is where the key was first needed, if known.
	FirstReference *model.Location
}

// Zone tracks the external values of one kind (import text, table
// schemas, or SQL schemas) that a translation has referenced and the ones
// the host has supplied.  A value may be supplied before it is referenced.
type Zone[T any] struct {
	entries map[string]*ZoneEntry[T]
}

func NewZone[T any]() *Zone[T] {
	return &Zone[T]{entries: make(map[string]*ZoneEntry[T])}
}

// Reference records that key is needed.  Only the first reference
// location is kept.
func (z *Zone[T]) Reference(key string, at *model.Location) {
	e, ok := z.entries[key]
	if !ok {
		z.entries[key] = &ZoneEntry[T]{Status: ZoneReferenced, FirstReference: at}
		return
	}
	if e.FirstReference == nil {
		e.FirstReference = at
	}
}

// Define supplies the value for key.  Supplying a key twice replaces the
// earlier value.
func (z *Zone[T]) Define(key string, value T) {
	e := z.entry(key)
	e.Status = ZonePresent
	e.Value = value
	e.Message = ""
}

// DefineError records that key could not be supplied.
func (z *Zone[T]) DefineError(key, msg string) {
	e := z.entry(key)
	var zero T
	e.Status = ZoneError
	e.Value = zero
	e.Message = msg
}

func (z *Zone[T]) entry(key string) *ZoneEntry[T] {
	e, ok := z.entries[key]
	if !ok {
		e = &ZoneEntry[T]{}
		z.entries[key] = e
	}
	return e
}

// Get returns the entry for key.  An unknown key is reported as
// referenced but not present.
func (z *Zone[T]) Get(key string) ZoneEntry[T] {
	if e, ok := z.entries[key]; ok {
		return *e
	}
	return ZoneEntry[T]{Status: ZoneReferenced}
}

// Needs returns the referenced keys that have not been supplied, sorted.
func (z *Zone[T]) Needs() []string {
	var keys []string
	for key, e := range z.entries {
		if e.Status == ZoneReferenced {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}
