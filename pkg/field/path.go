// Package field provides dotted paths that name fields through zero or
// more joins.
package field

import (
	"slices"
	"strings"
)

type Path []string

func New(name string) Path {
	return Path{name}
}

// Dotted splits s on periods.  The empty string is the empty path.
func Dotted(s string) Path {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Quoted renders p the way diagnostics refer to fields, e.g., `j.x`.
func (p Path) Quoted() string {
	return "`" + p.String() + "`"
}

func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Head returns all but the leaf, i.e., the join path leading to the leaf.
func (p Path) Head() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

func (p Path) Equal(to Path) bool {
	return slices.Equal(p, to)
}

func (p Path) HasPrefix(prefix Path) bool {
	return len(p) >= len(prefix) && slices.Equal(p[:len(prefix)], prefix)
}

// Prepend returns a new path of prefix followed by p.
func (p Path) Prepend(prefix Path) Path {
	out := make(Path, 0, len(prefix)+len(p))
	out = append(out, prefix...)
	return append(out, p...)
}

func (p Path) Key() string {
	return strings.Join(p, "\x00")
}

type List []Path

func (l List) Has(in Path) bool {
	return slices.ContainsFunc(l, in.Equal)
}

// Append adds p to l unless l already has it.
func (l List) Append(p Path) List {
	if l.Has(p) {
		return l
	}
	return append(l, p)
}
