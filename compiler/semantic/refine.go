package semantic

import (
	"slices"
	"strings"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
)

// refine applies r to pipeline, whose first segment reads from input.
// A single-stage pipeline is merged with the refinement segment.  For a
// longer pipeline only filters, limits, and orderings may be added: where:
// goes to the first stage and the rest to the last.
func (a *analyzer) refine(pipeline []model.Segment, r ast.ViewExpr, input *model.SourceDef) []model.Segment {
	if len(pipeline) == 1 {
		ref := a.refinementSegment(r, input, pipeline[0])
		if ref == nil {
			return nil
		}
		seg := a.mergeSegments(pipeline[0], ref, r)
		if seg == nil {
			return nil
		}
		return []model.Segment{seg}
	}
	sv, ok := r.(*ast.SegmentView)
	if !ok {
		a.error(r, "Illegal in refinement of a query with more than one stage")
		return nil
	}
	var first, last []ast.SegmentProp
	for _, p := range sv.Props {
		switch p := p.(type) {
		case *ast.Filter:
			if p.Op == "where" {
				first = append(first, p)
			} else {
				last = append(last, p)
			}
		case *ast.Limit, *ast.OrderBy:
			last = append(last, p)
		default:
			a.error(p, "Illegal in refinement of a query with more than one stage")
			return nil
		}
	}
	out := slices.Clone(pipeline)
	if len(first) > 0 {
		ref := a.compileSegment(first, sv, input, out[0])
		if ref == nil {
			return nil
		}
		if out[0] = a.mergeSegments(out[0], ref, sv); out[0] == nil {
			return nil
		}
	}
	if len(last) > 0 {
		n := len(out)
		ref := a.compileSegment(last, sv, out[n-2].Base().Output, out[n-1])
		if ref == nil {
			return nil
		}
		if out[n-1] = a.mergeSegments(out[n-1], ref, sv); out[n-1] == nil {
			return nil
		}
	}
	return out
}

// refinementSegment compiles r as the single segment that refines base.
func (a *analyzer) refinementSegment(r ast.ViewExpr, input *model.SourceDef, base model.Segment) model.Segment {
	switch r := r.(type) {
	case *ast.SegmentView:
		return a.compileSegment(r.Props, r, input, base)
	case *ast.ViewRef:
		switch f := input.Field(r.Name.Name).(type) {
		case nil:
			a.error(r.Name, undefined(r.Name.Name, fieldNames(input)))
		case *model.ViewField:
			if len(f.Pipeline) != 1 {
				a.errorf(r, "named refinement `%s` must have exactly one stage", r.Name.Name)
				return nil
			}
			return relocate(f.Pipeline[0], a.loc(r))
		case *model.AtomicField:
			return a.lens(r, f, input, base.SegmentType())
		default:
			a.errorf(r.Name, "'%s' is not a view", r.Name.Name)
		}
		return nil
	}
	pipeline := a.compileView(r, input, base.SegmentType())
	if pipeline == nil {
		return nil
	}
	if len(pipeline) != 1 {
		a.error(r, "A multi-stage view cannot be used as a refinement")
		return nil
	}
	return pipeline[0]
}

// mergeSegments returns base refined by ref, or nil after logging why the
// two cannot be combined.
func (a *analyzer) mergeSegments(base, ref model.Segment, n ast.Node) model.Segment {
	if base.SegmentType() != ref.SegmentType() {
		a.errorf(n, "cannot refine %s view with %s view", base.SegmentType(), ref.SegmentType())
		return nil
	}
	b, r := base.Base(), ref.Base()
	var overlap []string
	for _, f := range r.Fields {
		name := f.FieldName()
		if slices.ContainsFunc(b.Fields, func(g model.QueryField) bool { return g.FieldName() == name }) {
			overlap = append(overlap, name)
		}
	}
	if len(overlap) > 0 {
		a.errorf(n, "overlapping fields in refinement: %s", strings.Join(overlap, ","))
		return nil
	}
	if b.Limit > 0 && r.Limit > 0 {
		a.error(n, "refinement cannot override existing limit")
		return nil
	}
	if len(b.OrderBy) > 0 && len(r.OrderBy) > 0 {
		a.error(n, "refinement cannot override existing ordering")
		return nil
	}
	out := model.CopySegment(base)
	merged := out.Base()
	merged.Fields = append(merged.Fields, r.Fields...)
	merged.Filters = append(merged.Filters, r.Filters...)
	if r.Limit > 0 {
		merged.Limit = r.Limit
	}
	if len(r.OrderBy) > 0 {
		merged.OrderBy = slices.Clone(r.OrderBy)
	}
	if reduce, ok := out.(*model.Reduce); ok {
		reduce.Having = append(reduce.Having, ref.(*model.Reduce).Having...)
		reduce.ExpandedFieldUsage = nil
	}
	if _, ok := out.(*model.Index); !ok {
		output := b.Output.Copy()
		output.Fields = append(output.Fields, r.Output.Fields...)
		merged.Output = output
	}
	merged.Usage = segmentUsage(out)
	return out
}
