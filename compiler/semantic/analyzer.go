// Package semantic checks a parsed document against its scope and
// translates it into a model.ModelDef.
package semantic

import (
	"fmt"
	"net/url"
	"path"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/compiler/srcfiles"
)

// Resolver supplies the external dependencies of a document.  The
// translator only runs the semantic pass once every dependency referenced
// by the document has been supplied, so a Resolver never blocks.
type Resolver interface {
	// Import returns the model of the document at url.  Its error is
	// reported verbatim at the import site.
	Import(url string) (*model.ModelDef, error)
	// Table returns the schema for a key made with TableKey.
	Table(key string) (*model.TableSchema, error)
	// SQL returns the schema for a key made with SQLKey.
	SQL(key string) (*model.TableSchema, error)
}

func TableKey(connection, path string) string {
	return connection + ":" + path
}

func SQLKey(connection, sql string) string {
	return connection + ":" + sql
}

// ResolveURL resolves ref relative to the URL of the importing document.
// A base without a scheme is a relative path and ref is joined to its
// directory.
func ResolveURL(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || base == "" || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	if b.Scheme == "" {
		if path.IsAbs(ref) {
			return ref
		}
		return path.Join(path.Dir(base), ref)
	}
	return b.ResolveReference(r).String()
}

// Analyze translates doc in the context of base, which is nil or the model
// the document extends.  Problems are logged to files.  The returned model
// is complete even when errors were logged; definitions with errors are
// left out of it.
func Analyze(doc *ast.Document, docURL string, base *model.ModelDef, r Resolver, files *srcfiles.List) *model.ModelDef {
	a := newAnalyzer(docURL, base, r, files)
	for _, d := range doc.Decls {
		a.semDecl(d)
	}
	return a.model
}

type analyzer struct {
	url      string
	files    *srcfiles.List
	resolver Resolver
	scope    *Scope
	model    *model.ModelDef
}

func newAnalyzer(docURL string, base *model.ModelDef, r Resolver, files *srcfiles.List) *analyzer {
	a := &analyzer{
		url:      docURL,
		files:    files,
		resolver: r,
		scope:    NewScope(globals),
		model:    model.NewModelDef(docURL),
	}
	if base != nil {
		a.inherit(base)
	}
	return a
}

// inherit seeds the document with the contents of the model it extends.
func (a *analyzer) inherit(base *model.ModelDef) {
	exported := make(map[string]bool)
	for _, name := range base.Exports {
		exported[name] = true
	}
	for _, name := range base.Order {
		e := base.Contents[name]
		if err := a.scope.Define(name, e, exported[name]); err != nil {
			continue
		}
		a.model.Set(name, e, exported[name])
	}
	for id, v := range base.SourceRegistry {
		a.model.SourceRegistry[id] = v
	}
	a.model.Dependencies = append(a.model.Dependencies, base.Dependencies...)
}

func (a *analyzer) error(n ast.Node, msg string) {
	a.files.AddError(msg, n.Pos(), n.End())
}

func (a *analyzer) errorf(n ast.Node, format string, args ...any) {
	a.error(n, fmt.Sprintf(format, args...))
}

func (a *analyzer) warn(n ast.Node, msg string) {
	a.files.AddWarning(msg, n.Pos(), n.End())
}

// errorAt logs msg at loc when loc is in this document and otherwise at n.
func (a *analyzer) errorAt(loc *model.Location, n ast.Node, msg string) {
	if loc != nil && loc.URL == a.url {
		pos := a.files.Offset(loc.Range.Start.Line, loc.Range.Start.Character)
		end := a.files.Offset(loc.Range.End.Line, loc.Range.End.Character)
		if pos >= 0 && end >= pos {
			a.files.AddError(msg, pos, end)
			return
		}
	}
	a.error(n, msg)
}

// loc converts the byte span of n into a 0-based model location.
func (a *analyzer) loc(n ast.Node) *model.Location {
	start, end := a.files.Span(n.Pos(), n.End())
	return &model.Location{
		URL: a.url,
		Range: model.Range{
			Start: model.Position{Line: start.Line - 1, Character: start.Column - 1},
			End:   model.Position{Line: end.Line - 1, Character: end.Column - 1},
		},
	}
}

func (a *analyzer) text(n ast.Node) string {
	pos, end := n.Pos(), n.End()
	if pos < 0 || end > len(a.files.Text) || end < pos {
		return ""
	}
	return a.files.Text[pos:end]
}

func (a *analyzer) define(name *ast.ID, e model.Entry, exported bool) bool {
	if err := a.scope.Define(name.Name, e, exported); err != nil {
		a.error(name, err.Error())
		return false
	}
	a.model.Set(name.Name, e, exported)
	return true
}

func (a *analyzer) semDecl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.SourceDecl:
		a.semSourceDecl(d)
	case *ast.QueryDecl:
		q := a.semQuery(d.Query)
		if q == nil {
			return
		}
		q.Name = d.Name.Name
		q.Location = a.loc(d)
		a.define(d.Name, q, true)
	case *ast.RunDecl:
		q := a.semQuery(d.Query)
		if q == nil {
			return
		}
		q.Location = a.loc(d)
		a.model.QueryList = append(a.model.QueryList, q)
	case *ast.SQLDecl:
		a.semSQLDecl(d)
	case *ast.ImportDecl:
		a.semImport(d)
	default:
		panic(fmt.Errorf("semantic: unknown decl type %T", d))
	}
}

func (a *analyzer) semSourceDecl(d *ast.SourceDecl) {
	s := a.semSource(d.Source)
	if s == nil {
		return
	}
	s = derive(s)
	s.Name = d.Name.Name
	s.As = ""
	s.Location = a.loc(d)
	if ast.Persist(d.Annotations) {
		if s.IsPersistable() {
			s.Persist = true
			s.SourceID = model.MakeSourceID(s.Name, a.url)
		} else {
			a.warn(d.Name, fmt.Sprintf("'%s' cannot be persisted: only sql and query sources are persistable", s.Name))
		}
	}
	if a.define(d.Name, s, true) && s.Persist {
		a.model.SourceRegistry[s.SourceID] = &model.RegistryValue{Reference: s.Name}
	}
}

func (a *analyzer) semSQLDecl(d *ast.SQLDecl) {
	s := a.sqlSource(d.Connection, d.Select, d)
	if s == nil {
		return
	}
	s.Name = d.Name.Name
	a.define(d.Name, &model.SQLBlock{Kind: "SQLBlock", Name: d.Name.Name, Source: s}, true)
}

func (a *analyzer) semImport(d *ast.ImportDecl) {
	ref := ResolveURL(a.url, d.URL.Text)
	child, err := a.resolver.Import(ref)
	if err != nil {
		a.error(d.URL, err.Error())
		return
	}
	if child == nil {
		return
	}
	a.model.Dependencies = append(a.model.Dependencies, &model.Dependency{
		URL:          ref,
		Dependencies: child.Dependencies,
	})
	if len(d.Items) == 0 {
		for _, name := range child.Exports {
			e := child.Contents[name]
			if err := a.scope.Define(name, e, false); err != nil {
				a.error(d, err.Error())
				continue
			}
			a.model.Set(name, e, false)
			a.importRegistry(e, child)
		}
		return
	}
	exports := make(map[string]bool)
	for _, name := range child.Exports {
		exports[name] = true
	}
	for _, item := range d.Items {
		if !exports[item.Name.Name] {
			a.errorf(item.Name, "Cannot find '%s', not imported", item.Name.Name)
			continue
		}
		e := renamed(child.Contents[item.Name.Name], item.DestName())
		dst := item.Name
		if item.As != nil {
			dst = item.As
		}
		if err := a.scope.Define(dst.Name, e, false); err != nil {
			a.error(dst, err.Error())
			continue
		}
		a.model.Set(dst.Name, e, false)
		a.importRegistry(e, child)
	}
}

// renamed returns a copy of e known locally as name.  The entry's defined
// name is left unchanged.
func renamed(e model.Entry, name string) model.Entry {
	if e.EntryName() == name {
		return e
	}
	switch e := e.(type) {
	case *model.SourceDef:
		out := e.Copy()
		out.As = name
		return out
	case *model.Query:
		out := *e
		out.As = name
		return &out
	case *model.SQLBlock:
		out := *e
		out.Source = e.Source.Copy()
		out.Source.As = name
		return &out
	}
	return e
}
