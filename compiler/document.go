package compiler

import (
	"errors"
	"fmt"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/compiler/parser"
	"github.com/brimdata/semq/compiler/semantic"
	"github.com/brimdata/semq/compiler/srcfiles"
)

// document is one entry of the translator's arena.  It is created when
// its text arrives, parsed exactly once, and analyzed at most once.
type document struct {
	url      string
	index    int
	files    *srcfiles.List
	tree     *ast.Document
	parseErr bool
	// imports are the resolved URLs of the document's imports in
	// textual order.
	imports  []string
	children []int
	model    *model.ModelDef
	// analyzing is set while the semantic pass runs so an import of a
	// document still being analyzed can be reported as a cycle.
	analyzing bool
}

func newDocument(url string, index int, text string) *document {
	d := &document{
		url:   url,
		index: index,
		files: srcfiles.NewList(url, text),
	}
	tree, err := parser.Parse(d.files)
	if err != nil {
		d.parseErr = true
		return d
	}
	d.tree = tree
	return d
}

func (d *document) location(n ast.Node) *model.Location {
	start, end := d.files.Span(n.Pos(), n.End())
	return &model.Location{
		URL: d.url,
		Range: model.Range{
			Start: model.Position{Line: start.Line - 1, Character: start.Column - 1},
			End:   model.Position{Line: end.Line - 1, Character: end.Column - 1},
		},
	}
}

// collectNeeds references in t's zones every import, table, and SQL
// schema that d mentions.  It walks only the syntax tree so every need of
// a document is known before any semantic pass runs.
func (d *document) collectNeeds(t *Translator) {
	if d.tree == nil {
		return
	}
	c := &collector{doc: d, t: t}
	for _, decl := range d.tree.Decls {
		c.decl(decl)
	}
}

type collector struct {
	doc *document
	t   *Translator
}

func (c *collector) decl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.SourceDecl:
		c.source(d.Source)
	case *ast.QueryDecl:
		c.query(d.Query)
	case *ast.RunDecl:
		c.query(d.Query)
	case *ast.SQLDecl:
		c.t.sql.Reference(semantic.SQLKey(d.Connection.Name, d.Select.Text), c.doc.location(d))
	case *ast.ImportDecl:
		url := semantic.ResolveURL(c.doc.url, d.URL.Text)
		c.doc.imports = append(c.doc.imports, url)
		c.t.urls.Reference(url, c.doc.location(d.URL))
	default:
		panic(fmt.Errorf("compiler: unknown decl type %T", d))
	}
}

func (c *collector) source(e ast.SourceExpr) {
	switch e := e.(type) {
	case *ast.TableSource:
		c.t.tables.Reference(semantic.TableKey(e.Connection.Name, e.Table.Text), c.doc.location(e))
	case *ast.SQLSource:
		c.t.sql.Reference(semantic.SQLKey(e.Connection.Name, e.Select.Text), c.doc.location(e))
	case *ast.NamedSource:
	case *ast.ComposeSource:
		for _, s := range e.Sources {
			c.source(s)
		}
	case *ast.ExtendSource:
		c.source(e.Base)
		for _, p := range e.Props {
			if j, ok := p.(*ast.JoinDecl); ok && j.Source != nil {
				c.source(j.Source)
			}
		}
	case *ast.QuerySource:
		c.query(e.Query)
	default:
		panic(fmt.Errorf("compiler: unknown source type %T", e))
	}
}

func (c *collector) query(e ast.QueryExpr) {
	switch e := e.(type) {
	case *ast.QueryRef:
	case *ast.FromSource:
		c.source(e.Source)
	case *ast.Arrow:
		c.query(e.Base)
	case *ast.Refine:
		c.query(e.Base)
	default:
		panic(fmt.Errorf("compiler: unknown query type %T", e))
	}
}

// resolver answers the semantic pass of one document from the
// translator's zones and arena.
type resolver struct {
	t   *Translator
	doc *document
}

var _ semantic.Resolver = (*resolver)(nil)

func (r *resolver) Import(url string) (*model.ModelDef, error) {
	e := r.t.urls.Get(url)
	if e.Status == ZoneError {
		return nil, fmt.Errorf("import failed: '%s'", e.Message)
	}
	k, ok := r.t.byURL[url]
	if !ok {
		return nil, fmt.Errorf("import failed: '%s' was not supplied", url)
	}
	child := r.t.docs[k]
	if child.analyzing {
		return nil, fmt.Errorf("Circular import of '%s'", url)
	}
	r.doc.children = append(r.doc.children, k)
	return r.t.analyze(child, nil), nil
}

func (r *resolver) Table(key string) (*model.TableSchema, error) {
	return zoneValue(r.t.tables, key)
}

func (r *resolver) SQL(key string) (*model.TableSchema, error) {
	return zoneValue(r.t.sql, key)
}

func zoneValue(z *Zone[*model.TableSchema], key string) (*model.TableSchema, error) {
	e := z.Get(key)
	switch e.Status {
	case ZonePresent:
		return e.Value, nil
	case ZoneError:
		return nil, errors.New(e.Message)
	}
	return nil, fmt.Errorf("schema for '%s' was not supplied", key)
}
