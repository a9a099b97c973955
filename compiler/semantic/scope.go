package semantic

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/brimdata/semq/compiler/model"
)

// Scope is a namespace of model entries.  A document scope's parent is the
// read-only global scope of built-in functions.
type Scope struct {
	parent  *Scope
	symbols map[string]*entry
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*entry)}
}

type entry struct {
	ref      model.Entry
	exported bool
	order    int
}

// Define binds name to e.  It fails if name is already bound in s or is a
// global.
func (s *Scope) Define(name string, e model.Entry, exported bool) error {
	for p := s.parent; p != nil; p = p.parent {
		if _, ok := p.symbols[name]; ok {
			return fmt.Errorf("Cannot redefine '%s', which is in global namespace", name)
		}
	}
	if _, ok := s.symbols[name]; ok {
		return fmt.Errorf("Cannot redefine '%s'", name)
	}
	s.symbols[name] = &entry{ref: e, exported: exported, order: len(s.symbols)}
	return nil
}

func (s *Scope) Lookup(name string) model.Entry {
	for scope := s; scope != nil; scope = scope.parent {
		if entry, ok := scope.symbols[name]; ok {
			return entry.ref
		}
	}
	return nil
}

// Names returns the names bound in s and its parents, innermost first and
// in definition order within a scope.
func (s *Scope) Names() []string {
	var out []string
	for scope := s; scope != nil; scope = scope.parent {
		names := make([]string, 0, len(scope.symbols))
		for name := range scope.symbols {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			return scope.symbols[names[i]].order < scope.symbols[names[j]].order
		})
		out = append(out, names...)
	}
	return out
}

// undefined formats the error for a reference to an unbound name, naming
// the closest candidate when one is near enough to be a likely typo.
func undefined(name string, candidates []string) string {
	msg := fmt.Sprintf("'%s' is not defined", name)
	if s := suggest(name, candidates); s != "" {
		msg += fmt.Sprintf(", did you mean '%s'?", s)
	}
	return msg
}

func suggest(name string, candidates []string) string {
	limit := 2
	if len(name) <= 3 {
		limit = 1
	}
	var best string
	bestDist := limit + 1
	for _, c := range candidates {
		if c == name {
			continue
		}
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
