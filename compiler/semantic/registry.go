package semantic

import (
	"slices"

	"github.com/brimdata/semq/compiler/model"
)

// derive returns a copy of base for use as the starting point of a new
// source.  The copy is not itself persistent but depends on base and on
// everything base depends on.
func derive(base *model.SourceDef) *model.SourceDef {
	out := base.Copy()
	out.Persist = false
	out.SourceID = ""
	out.DependsOn = dependsOn(nil, base)
	return out
}

// dependsOn adds the persistent sources that s requires to ids.
func dependsOn(ids []string, s *model.SourceDef) []string {
	if s.SourceID != "" && !slices.Contains(ids, s.SourceID) {
		ids = append(ids, s.SourceID)
	}
	for _, id := range s.DependsOn {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// importRegistry copies into the document's registry each persistent
// source that an imported entry depends on.  Copies are hidden sources, so
// they never become names in this document.
func (a *analyzer) importRegistry(e model.Entry, child *model.ModelDef) {
	var s *model.SourceDef
	switch e := e.(type) {
	case *model.SourceDef:
		s = e
	case *model.Query:
		s = e.Source
	}
	if s == nil {
		return
	}
	for _, id := range dependsOn(nil, s) {
		if _, ok := a.model.SourceRegistry[id]; ok {
			continue
		}
		if dep := child.ResolveSourceID(id); dep != nil {
			a.model.SourceRegistry[id] = &model.RegistryValue{Source: dep}
		}
	}
}
