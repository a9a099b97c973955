package semantic

import (
	"slices"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
)

// lookupField resolves path through the joins in fields.
func lookupField(path field.Path, fields []model.FieldDef) model.FieldDef {
	if len(path) == 0 {
		return nil
	}
	for _, f := range fields {
		if f.FieldName() != path[0] {
			continue
		}
		if len(path) == 1 {
			return f
		}
		if j, ok := f.(*model.JoinField); ok {
			return lookupField(path[1:], j.Source.Fields)
		}
		return nil
	}
	return nil
}

func filterUsage(s *model.SourceDef) []model.FieldUsage {
	var out []model.FieldUsage
	for _, f := range s.Filters {
		out = append(out, f.Usage...)
	}
	return out
}

// joinUsage is the usage needed to bring in the join at joinPath: the
// join's own filters, which are relative to the join, and its on
// condition, which is relative to the join's parent.
func joinUsage(j *model.JoinField, joinPath field.Path) []model.FieldUsage {
	return model.MergeUsage(
		model.JoinedUsage(joinPath, filterUsage(j.Source)),
		model.JoinedUsage(joinPath.Head(), j.OnUsage),
	)
}

func joinedUngroupings(joinPath field.Path, ungroupings []model.Ungrouping) []model.Ungrouping {
	out := make([]model.Ungrouping, 0, len(ungroupings))
	for _, u := range ungroupings {
		u.Usage = model.JoinedUsage(joinPath, u.Usage)
		u.Path = joinPath
		out = append(out, u)
	}
	return out
}

func ungroupingsAt(ungroupings []model.Ungrouping, at *model.Location) []model.Ungrouping {
	if at == nil {
		return ungroupings
	}
	out := make([]model.Ungrouping, 0, len(ungroupings))
	for _, u := range ungroupings {
		u.Usage = model.UsageAt(u.Usage, at)
		out = append(out, u)
	}
	return out
}

// expandFieldUsage closes usage over the definitions in fields.  A
// reference to a dimension or measure brings in what the definition
// references, and a reference through a join brings in the join's on
// condition and filters.  New usage is appended in the order it is
// discovered.  References that do not resolve are returned as missing.
func expandFieldUsage(usage []model.FieldUsage, fields []model.FieldDef) (result, missing []model.FieldUsage, ungroupings []model.Ungrouping) {
	seen := make(map[string]int)
	var queue []model.FieldUsage
	add := func(u model.FieldUsage) bool {
		key := "\x01"
		if len(u.Path) > 0 {
			key = u.Path.Key()
		}
		if i, ok := seen[key]; ok {
			result[i] = model.MergeUsage(result[i:i+1], []model.FieldUsage{u})[0]
			return false
		}
		seen[key] = len(result)
		result = append(result, u)
		return true
	}
	for _, u := range usage {
		if add(u) {
			queue = append(queue, u)
		}
	}
	checked := make(map[string]bool)
	for k := 0; k < len(queue); k++ {
		ref := queue[k]
		if len(ref.Path) == 0 {
			continue
		}
		def := lookupField(ref.Path, fields)
		if def == nil {
			missing = append(missing, ref)
			continue
		}
		if atomic, ok := def.(*model.AtomicField); ok {
			head := ref.Path.Head()
			for _, u := range model.JoinedUsage(head, atomic.Usage) {
				if add(u) {
					queue = append(queue, u)
				}
			}
			ungroupings = append(ungroupings, joinedUngroupings(head, atomic.Ungroupings)...)
		}
		for n := 1; n < len(ref.Path); n++ {
			joinPath := ref.Path[:n]
			j, ok := lookupField(joinPath, fields).(*model.JoinField)
			if !ok {
				break
			}
			if checked[joinPath.Key()] {
				continue
			}
			checked[joinPath.Key()] = true
			for _, u := range joinUsage(j, joinPath) {
				if add(u) {
					queue = append(queue, u)
				}
			}
		}
	}
	return model.MergeUsage(result), missing, ungroupings
}

type joinedUsage struct {
	name  string
	usage []model.FieldUsage
}

// categorize splits usage into the usage of fields of the source itself
// and, per join in order of first use, the usage inside each join relative
// to the join.
func categorize(usage []model.FieldUsage) ([]model.FieldUsage, []joinedUsage) {
	var local []model.FieldUsage
	var joins []joinedUsage
	index := make(map[string]int)
	for _, u := range usage {
		if len(u.Path) <= 1 {
			local = append(local, u)
			continue
		}
		name := u.Path[0]
		k, ok := index[name]
		if !ok {
			k = len(joins)
			index[name] = k
			joins = append(joins, joinedUsage{name: name})
		}
		joins[k].usage = append(joins[k].usage, model.FieldUsage{Path: u.Path[1:], At: u.At})
	}
	return local, joins
}

// nestLevels is the usage of one segment organized by nesting level, which
// is the scope in which a required group-by must be satisfied.
type nestLevels struct {
	direct      []model.FieldUsage
	referenced  []model.FieldUsage
	rgbs        []model.RequiredGroupBy
	nested      []*nestLevels
	ungroupings []model.Ungrouping
	singleValue []field.Path
}

func extractNestLevels(seg model.Segment) *nestLevels {
	levels := &nestLevels{}
	if _, ok := seg.(*model.Index); ok {
		return levels
	}
	base := seg.Base()
	for _, f := range base.Fields {
		switch f := f.(type) {
		case *model.FieldRef:
			u := model.FieldUsage{Path: f.Path, At: f.At}
			levels.direct = append(levels.direct, u)
			levels.referenced = append(levels.referenced, u)
		case *model.ViewField:
			if len(f.Pipeline) == 0 {
				continue
			}
			head := f.Pipeline[0]
			nested := extractNestLevels(head)
			if hasUniqueKeyRequirement(nested.referenced) || hasUniqueKeyRequirement(head.Base().Usage) {
				levels.referenced = append(levels.referenced, model.FieldUsage{
					UniqueKeyRequirement: &model.UniqueKeyRequirement{IsCount: true},
					At:                   head.Base().At,
				})
			}
			for k := range nested.ungroupings {
				nested.ungroupings[k].Path = nested.ungroupings[k].Path.Prepend(field.New(f.Name))
			}
			levels.nested = append(levels.nested, nested.at(head.Base().At))
		case *model.AtomicField:
			levels.referenced = append(levels.referenced, f.Usage...)
			levels.ungroupings = append(levels.ungroupings, f.Ungroupings...)
			levels.rgbs = append(levels.rgbs, f.RequiresGroupBy...)
		}
	}
	for _, filter := range base.Filters {
		if filter.Shape == model.Scalar {
			levels.singleValue = append(levels.singleValue, singleValueFields(filter.Expr)...)
		}
	}
	return levels.at(base.At)
}

func hasUniqueKeyRequirement(usage []model.FieldUsage) bool {
	return slices.ContainsFunc(usage, func(u model.FieldUsage) bool {
		return u.UniqueKeyRequirement != nil
	})
}

// at relocates every usage in n to loc, which is where a copied view was
// referenced.
func (n *nestLevels) at(loc *model.Location) *nestLevels {
	if loc == nil {
		return n
	}
	out := &nestLevels{
		direct:      model.UsageAt(n.direct, loc),
		referenced:  model.UsageAt(n.referenced, loc),
		ungroupings: ungroupingsAt(n.ungroupings, loc),
		singleValue: n.singleValue,
	}
	for _, rgb := range n.rgbs {
		out.rgbs = append(out.rgbs, rgbAt(rgb, loc))
	}
	for _, nested := range n.nested {
		out.nested = append(out.nested, nested.at(loc))
	}
	return out
}

func rgbAt(rgb model.RequiredGroupBy, loc *model.Location) model.RequiredGroupBy {
	rgb.At = loc
	if rgb.Usage != nil {
		u := *rgb.Usage
		u.At = loc
		rgb.Usage = &u
	}
	return rgb
}

// singleValueFields returns the fields that filter e pins to a single value,
// i.e., the fields of equality comparisons with a literal, possibly joined
// by "and".
func singleValueFields(e model.Expr) []field.Path {
	b, ok := e.(*model.Binary)
	if !ok {
		return nil
	}
	switch b.Op {
	case "and":
		return append(singleValueFields(b.LHS), singleValueFields(b.RHS)...)
	case "=":
		f, ok := b.LHS.(*model.Field)
		if !ok {
			return nil
		}
		if _, ok := b.RHS.(*model.Literal); ok {
			return []field.Path{f.Path}
		}
	}
	return nil
}

type expandedLevels struct {
	direct        []model.FieldUsage
	rgbs          []model.RequiredGroupBy
	unsatisfiable []model.RequiredGroupBy
	nested        []*expandedLevels
	singleValue   []field.Path
	ungroupings   []model.Ungrouping
}

// expandRefs follows the references of each level through the definitions
// in fields to find every required group-by the level is subject to.
func expandRefs(n *nestLevels, fields []model.FieldDef) (*expandedLevels, []model.FieldUsage) {
	var newNests []*nestLevels
	rgbs := slices.Clone(n.rgbs)
	ungroupings := slices.Clone(n.ungroupings)
	refs := slices.Clone(n.referenced)
	var missing []model.FieldUsage
	var joinsSeen field.List
	has := func(p field.Path) bool {
		return slices.ContainsFunc(refs, func(u model.FieldUsage) bool {
			return u.Path.Equal(p)
		})
	}
	for k := 0; k < len(refs); k++ {
		ref := refs[k]
		if len(ref.Path) == 0 {
			continue
		}
		def := lookupField(ref.Path, fields)
		if def == nil {
			missing = append(missing, ref)
			continue
		}
		joinPath := ref.Path.Head()
		switch def := def.(type) {
		case *model.ViewField:
			if len(def.Pipeline) > 0 {
				nested := extractNestLevels(def.Pipeline[0])
				for k := range nested.ungroupings {
					nested.ungroupings[k].Path = ref.Path
				}
				newNests = append(newNests, nested)
			}
		case *model.AtomicField:
			for _, rgb := range def.RequiresGroupBy {
				path := rgb.Path.Prepend(joinPath)
				target := lookupField(path, fields)
				if target == nil {
					missing = append(missing, ref)
					continue
				}
				if model.IsCompositeField(target) {
					continue
				}
				usage := ref
				rgbs = append(rgbs, model.RequiredGroupBy{Path: path, At: ref.At, Usage: &usage})
			}
			ungroupings = append(ungroupings, joinedUngroupings(joinPath, ungroupingsAt(def.Ungroupings, ref.At))...)
			for _, u := range model.UsageAt(model.JoinedUsage(joinPath, def.Usage), ref.At) {
				if !has(u.Path) {
					refs = append(refs, u)
				}
			}
		}
		if len(ref.Path) > 1 && !joinsSeen.Has(joinPath) {
			joinsSeen = append(joinsSeen, joinPath)
			if j, ok := lookupField(joinPath, fields).(*model.JoinField); ok {
				for _, u := range model.UsageAt(joinUsage(j, joinPath), ref.At) {
					if !has(u.Path) {
						refs = append(refs, u)
					}
				}
			}
		}
	}
	var unsatisfiable []model.RequiredGroupBy
	for _, u := range slices.Clone(ungroupings) {
		expanded, more := expandRefs(&nestLevels{referenced: u.Usage}, fields)
		missing = append(missing, more...)
		for _, rgb := range expanded.rgbs {
			if u.UngroupedBy(rgb.Path) {
				unsatisfiable = append(unsatisfiable, rgb)
			}
		}
	}
	out := &expandedLevels{
		direct:      n.direct,
		rgbs:        rgbs,
		singleValue: n.singleValue,
	}
	for _, level := range slices.Concat(n.nested, newNests) {
		expanded, more := expandRefs(level, fields)
		missing = append(missing, more...)
		out.nested = append(out.nested, expanded)
		unsatisfiable = append(unsatisfiable, expanded.unsatisfiable...)
		ungroupings = append(ungroupings, expanded.ungroupings...)
	}
	out.unsatisfiable = unsatisfiable
	out.ungroupings = ungroupings
	return out, missing
}

// unsatisfied returns the required group-bys of level and its nested
// levels that are neither grouped by nor pinned by a single value filter
// in level, followed by those made unsatisfiable by an ungrouping.
func unsatisfied(level *expandedLevels) []model.RequiredGroupBy {
	var satisfied field.List
	for _, u := range level.direct {
		satisfied = append(satisfied, u.Path)
	}
	satisfied = append(satisfied, level.singleValue...)
	rgbs := slices.Clone(level.rgbs)
	for _, nested := range level.nested {
		rgbs = append(rgbs, unsatisfied(nested)...)
	}
	var out []model.RequiredGroupBy
	for _, rgb := range rgbs {
		if !satisfied.Has(rgb.Path) {
			out = append(out, rgb)
		}
	}
	return append(out, level.unsatisfiable...)
}

func checkRequired(n *nestLevels, fields []model.FieldDef) []model.RequiredGroupBy {
	expanded, _ := expandRefs(n, fields)
	return unsatisfied(expanded)
}

// checkRequiredGroupBys reports each required group-by of seg that s does
// not satisfy.  It is used for sources that are not composite, for which a
// failure is an ordinary located error.
func (a *analyzer) checkRequiredGroupBys(s *model.SourceDef, seg model.Segment, n ast.Node) bool {
	rgbs := checkRequired(extractNestLevels(seg), s.Fields)
	for _, rgb := range rgbs {
		a.errorAt(rgb.At, n, "Group by or single value filter of "+rgb.Path.Quoted()+" is required but not present")
	}
	return len(rgbs) == 0
}

// segmentUsage recomputes the usage of seg from its parts: filters, then
// fields in order, then having.
func segmentUsage(seg model.Segment) []model.FieldUsage {
	base := seg.Base()
	var usage []model.FieldUsage
	for _, f := range base.Filters {
		usage = model.MergeUsage(usage, f.Usage)
	}
	for _, f := range base.Fields {
		usage = model.MergeUsage(usage, queryFieldUsage(f))
	}
	if r, ok := seg.(*model.Reduce); ok {
		for _, f := range r.Having {
			usage = model.MergeUsage(usage, f.Usage)
		}
	}
	return usage
}

func queryFieldUsage(f model.QueryField) []model.FieldUsage {
	switch f := f.(type) {
	case *model.FieldRef:
		return []model.FieldUsage{{Path: f.Path, At: f.At}}
	case *model.AtomicField:
		return f.Usage
	case *model.ViewField:
		if len(f.Pipeline) > 0 {
			return f.Pipeline[0].Base().Usage
		}
	}
	return nil
}

// relocate returns a copy of seg in which every usage is attributed to at,
// which is where a named view was referenced.
func relocate(seg model.Segment, at *model.Location) model.Segment {
	out := model.CopySegment(seg)
	base := out.Base()
	base.At = at
	for k, f := range base.Fields {
		switch f := f.(type) {
		case *model.FieldRef:
			ref := *f
			ref.At = at
			base.Fields[k] = &ref
		case *model.AtomicField:
			atomic := *f
			atomic.Usage = model.UsageAt(f.Usage, at)
			atomic.Ungroupings = ungroupingsAt(f.Ungroupings, at)
			base.Fields[k] = &atomic
		case *model.ViewField:
			view := *f
			view.Pipeline = slices.Clone(f.Pipeline)
			if len(view.Pipeline) > 0 {
				view.Pipeline[0] = relocate(view.Pipeline[0], at)
			}
			base.Fields[k] = &view
		}
	}
	base.Filters = filtersAt(base.Filters, at)
	if r, ok := out.(*model.Reduce); ok {
		r.Having = filtersAt(r.Having, at)
	}
	base.Usage = segmentUsage(out)
	return out
}

func filtersAt(filters []*model.Filter, at *model.Location) []*model.Filter {
	out := make([]*model.Filter, 0, len(filters))
	for _, f := range filters {
		filter := *f
		filter.Usage = model.UsageAt(f.Usage, at)
		out = append(out, &filter)
	}
	return out
}
