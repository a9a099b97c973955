package semantic

import (
	"fmt"
	"slices"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
)

type issueKind int

const (
	issueMissingField issueKind = iota
	issueJoinFailed
	issueMissingGroupBy
)

// compositeIssue is one reason a composite input cannot serve a query.
type compositeIssue struct {
	kind issueKind
	// issueMissingField
	field model.FieldUsage
	// issueMissingGroupBy
	rgb model.RequiredGroupBy
	// issueJoinFailed
	failures []compositeFailure
	path     field.Path
	first    model.FieldUsage
}

func (i compositeIssue) location() *model.Location {
	switch i.kind {
	case issueMissingField:
		return i.field.At
	case issueMissingGroupBy:
		return i.rgb.At
	}
	return i.first.At
}

// trigger is the field usage that caused the issue, if there is one.
func (i compositeIssue) trigger() *model.FieldUsage {
	switch i.kind {
	case issueMissingField:
		return &i.field
	case issueMissingGroupBy:
		return i.rgb.Usage
	}
	return nil
}

type compositeFailure struct {
	source *model.SourceDef
	issues []compositeIssue
}

type compositeCode int

const (
	noSuitableInput compositeCode = iota
	joinNotDefined
	joinNotAJoin
)

type compositeError struct {
	code     compositeCode
	failures []compositeFailure
	usage    []model.FieldUsage
	path     field.Path
}

func isComposite(s *model.SourceDef) bool {
	return s.Type == model.SourceComposite
}

func nonCompositeFields(s *model.SourceDef) []model.FieldDef {
	var out []model.FieldDef
	for _, f := range s.Fields {
		if !model.IsCompositeField(f) {
			out = append(out, f)
		}
	}
	return out
}

// onlyCompositeUsage keeps the usage of composite fields along with usage
// that does not resolve in fields.  Path-less usage is dropped.
func onlyCompositeUsage(usage []model.FieldUsage, fields []model.FieldDef) []model.FieldUsage {
	var out []model.FieldUsage
	for _, u := range usage {
		if len(u.Path) == 0 {
			continue
		}
		f := lookupField(u.Path, fields)
		if f == nil || model.IsCompositeField(f) {
			out = append(out, u)
		}
	}
	return out
}

// mergeFields combines lists of fields by name.  A later field replaces an
// earlier one of the same name in the earlier one's position.
func mergeFields(lists ...[]model.FieldDef) []model.FieldDef {
	var out []model.FieldDef
	index := make(map[string]int)
	for _, list := range lists {
		for _, f := range list {
			if k, ok := index[f.FieldName()]; ok {
				out[k] = f
				continue
			}
			index[f.FieldName()] = len(out)
			out = append(out, f)
		}
	}
	return out
}

// genRootFields returns rootFields with the fields of the join at joinPath
// replaced by (or, when replace is false, merged with) fields.
func genRootFields(rootFields []model.FieldDef, joinPath field.Path, fields []model.FieldDef, replace bool) []model.FieldDef {
	if len(joinPath) == 0 {
		if replace {
			return slices.Clone(fields)
		}
		return mergeFields(rootFields, fields)
	}
	out := slices.Clone(rootFields)
	for k, f := range out {
		if f.FieldName() != joinPath[0] {
			continue
		}
		j, ok := f.(*model.JoinField)
		if !ok {
			break
		}
		join := *j
		join.Source = j.Source.Copy()
		join.Source.Fields = genRootFields(j.Source.Fields, joinPath[1:], fields, replace)
		out[k] = &join
		break
	}
	return out
}

func joinFields(rootFields []model.FieldDef, joinPath field.Path) []model.FieldDef {
	if len(joinPath) == 0 {
		return rootFields
	}
	if j, ok := lookupField(joinPath, rootFields).(*model.JoinField); ok {
		return j.Source.Fields
	}
	return nil
}

// resolveComposite chooses an input for each composite source reachable
// from source through the usage of a query.  path is the join path from
// the query's source to source and rootFields are the fields of the
// query's source as resolved so far.  candidates, when non-nil, narrows
// the inputs of source to try.  The returned bool is true if any composite
// source was resolved.
func resolveComposite(path field.Path, source *model.SourceDef, rootFields []model.FieldDef, nests *nestLevels, usage []model.FieldUsage, candidates []*model.SourceDef) (*model.SourceDef, bool, *compositeError) {
	base := source.Copy()
	var anyComposites, joinsProcessed bool
	nonComposite := nonCompositeFields(source)
	all, _, _ := expandFieldUsage(usage, rootFields)
	expandedForError := onlyCompositeUsage(all, source.Fields)
	if isComposite(source) {
		anyComposites = true
		if candidates == nil {
			candidates = source.Candidates
		}
		var failures []compositeFailure
		found := false
		for _, candidate := range candidates {
			var issues []compositeIssue
			abort := func() {
				failures = append(failures, compositeFailure{source: candidate, issues: issues})
			}
			names := make(map[string]bool)
			for _, f := range candidate.Fields {
				names[f.FieldName()] = true
			}
			withWheres := model.MergeUsage(filterUsage(candidate), usage)
			lookupFields := slices.Concat(nonComposite, candidate.Fields)
			expanded, missing, _ := expandFieldUsage(withWheres, lookupFields)
			for _, u := range missing {
				issues = append(issues, compositeIssue{kind: issueMissingField, field: u})
			}
			if len(issues) > 0 {
				abort()
				continue
			}
			local, joins := categorize(expanded)
			compositeUsage := onlyCompositeUsage(local, source.Fields)
			for _, u := range compositeUsage {
				if len(u.Path) > 0 && !names[u.Path[0]] {
					issues = append(issues, compositeIssue{kind: issueMissingField, field: u})
				}
			}
			if len(issues) > 0 {
				abort()
				continue
			}
			if isComposite(candidate) {
				inner, _, err := resolveComposite(path, candidate, genRootFields(rootFields, path, lookupFields, false), nests, compositeUsage, candidate.Candidates)
				if err != nil {
					if err.code == noSuitableInput {
						failures = append(failures, err.failures...)
					} else {
						abort()
					}
					continue
				}
				base = inner.Copy()
			} else {
				base = candidate.Copy()
			}
			base.Fields = slices.Concat(nonComposite, base.Fields)
			base.Filters = slices.Concat(source.Filters, base.Filters)
			joinErrs, _ := processJoins(path, base, rootFields, nests, joins)
			if len(joinErrs) > 0 {
				for _, je := range joinErrs {
					if je.err.code != noSuitableInput {
						return nil, false, je.err
					}
					issues = append(issues, compositeIssue{
						kind:     issueJoinFailed,
						failures: je.err.failures,
						path:     je.err.path,
						first:    je.first,
					})
				}
				abort()
				continue
			}
			joinsProcessed = true
			if nests != nil {
				rf := genRootFields(rootFields, path, base.Fields, false)
				for _, rgb := range checkRequired(nests, rf) {
					issues = append(issues, compositeIssue{kind: issueMissingGroupBy, rgb: rgb})
				}
			}
			if len(issues) > 0 {
				abort()
				continue
			}
			found = true
			break
		}
		if !found {
			return nil, false, &compositeError{code: noSuitableInput, failures: failures, usage: expandedForError, path: path}
		}
	}
	if !joinsProcessed {
		expanded, missing, _ := expandFieldUsage(usage, joinFields(rootFields, path))
		if len(missing) > 0 {
			return nil, false, &compositeError{code: noSuitableInput, usage: expandedForError, path: path}
		}
		_, joins := categorize(expanded)
		joinErrs, joined := processJoins(path, base, rootFields, nests, joins)
		if len(joinErrs) > 0 {
			return nil, false, joinErrs[0].err
		}
		anyComposites = anyComposites || joined
	}
	return base, anyComposites, nil
}

type joinError struct {
	err   *compositeError
	first model.FieldUsage
}

// processJoins resolves the composite sources of the joins of base that
// the query uses, replacing each such join in base with its resolution.
func processJoins(path field.Path, base *model.SourceDef, rootFields []model.FieldDef, nests *nestLevels, joins []joinedUsage) ([]joinError, bool) {
	var errs []joinError
	var anyComposites bool
	for _, ju := range joins {
		joinPath := slices.Concat(path, field.Path{ju.name})
		k := slices.IndexFunc(base.Fields, func(f model.FieldDef) bool {
			return f.FieldName() == ju.name
		})
		if k < 0 {
			errs = append(errs, joinError{&compositeError{code: joinNotDefined, path: joinPath}, ju.usage[0]})
			continue
		}
		j, ok := base.Fields[k].(*model.JoinField)
		if !ok {
			errs = append(errs, joinError{&compositeError{code: joinNotAJoin, path: joinPath}, ju.usage[0]})
			continue
		}
		resolved, any, err := resolveComposite(joinPath, j.Source, genRootFields(rootFields, path, base.Fields, true), nests, ju.usage, nil)
		if err != nil {
			errs = append(errs, joinError{err, ju.usage[0]})
			continue
		}
		if !any {
			continue
		}
		anyComposites = true
		join := *j
		join.Source = resolved
		base.Fields[k] = &join
	}
	return errs, anyComposites
}

// resolveQuerySource resolves the composite sources of s for the first
// segment of a query.  It returns nil and no error when s has no composite
// source.
func resolveQuerySource(s *model.SourceDef, seg model.Segment) (*model.SourceDef, *compositeError) {
	usage := model.MergeUsage(filterUsage(s), seg.Base().Usage)
	resolved, any, err := resolveComposite(nil, s, s.Fields, extractNestLevels(seg), usage, nil)
	if err != nil || !any {
		return nil, err
	}
	return resolved, nil
}

// compositeError logs err at the last issue, in source order, of the
// failed inputs, or at n.
func (a *analyzer) compositeError(err *compositeError, n ast.Node) {
	if err.code != noSuitableInput || len(err.failures) == 0 {
		a.error(n, "Could not resolve composite source")
		return
	}
	firsts := make([]compositeIssue, 0, len(err.failures))
	for _, f := range err.failures {
		if len(f.issues) > 0 {
			firsts = append(firsts, f.issues[0])
		}
	}
	if len(firsts) == 0 {
		a.error(n, "Could not resolve composite source")
		return
	}
	slices.SortStableFunc(firsts, func(x, y compositeIssue) int {
		return model.CompareLocations(x.location(), y.location())
	})
	last := firsts[len(firsts)-1]
	var conflicting []model.FieldUsage
	var groupBys field.List
	var joins field.List
	for _, issue := range firsts {
		switch issue.kind {
		case issueMissingField:
			conflicting = append(conflicting, issue.field)
		case issueMissingGroupBy:
			groupBys = append(groupBys, issue.rgb.Path)
		case issueJoinFailed:
			joins = joins.Append(issue.path)
		}
	}
	fConflicting := model.FormatUsage(model.JoinedUsage(err.path, conflicting))
	fGroupBys := model.FormatPaths(groupBys, "and/or")
	const grouping = "required group by or single value filter"
	var parts []string
	if len(conflicting) > 0 && len(groupBys) > 0 {
		parts = append(parts, fmt.Sprintf("there is no composite input source which defines %s without having an unsatisfied %s on %s", fConflicting, grouping, fGroupBys))
	} else {
		if len(conflicting) > 0 {
			parts = append(parts, "there is no composite input source which defines all of "+fConflicting)
		}
		if len(groupBys) > 0 {
			parts = append(parts, fmt.Sprintf("there is a missing %s of %s", grouping, fGroupBys))
		}
	}
	if len(joins) > 0 {
		noun := "join"
		if len(joins) > 1 {
			noun = "joins"
		}
		parts = append(parts, fmt.Sprintf("%s %s could not be resolved", noun, model.FormatPaths(joins, "and")))
	}
	trigger := "results in"
	if u := last.trigger(); u != nil {
		trigger = fmt.Sprintf("uses field %s, resulting in", model.FormatUsage(model.JoinedUsage(err.path, []model.FieldUsage{*u})))
	}
	msg := fmt.Sprintf("This operation %s invalid usage of the composite source, as %s (fields required in source: %s)",
		trigger, model.CommaList(parts, "and"), model.FormatUsage(model.JoinedUsage(err.path, err.usage)))
	a.errorAt(last.location(), n, msg)
}
