// Package parser turns document text into an ast.Document.
package parser

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/srcfiles"
)

// Parse parses the text of files.  Syntax errors are added to files and the
// returned error is files.Error().  The parse stops at the first error.
func Parse(files *srcfiles.List) (*ast.Document, error) {
	doc, perr := parse(files.Text)
	if perr != nil {
		files.AddError(perr.msg, perr.pos, perr.end)
		return nil, files.Error()
	}
	return doc, nil
}

// ParseText parses text without a URL and is used by tests and tools.
func ParseText(text string) (*ast.Document, error) {
	return Parse(srcfiles.NewList("", text))
}

type parseError struct {
	msg string
	pos int
	end int
}

type parser struct {
	toks []token
	i    int
	// last is the end of the most recently consumed token.
	last int
}

func parse(text string) (doc *ast.Document, err *parseError) {
	toks, lerr := lex(text)
	if lerr != nil {
		return nil, &parseError{lerr.msg, lerr.pos, lerr.end}
	}
	p := &parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(*parseError)
			if !ok {
				panic(r)
			}
			doc, err = nil, perr
		}
	}()
	return p.parseDocument(), nil
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.typ != tokEOF {
		p.i++
		p.last = t.end
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) {
	panic(&parseError{fmt.Sprintf(format, args...), t.pos, t.end})
}

func (p *parser) unexpected() {
	t := p.peek()
	p.errorf(t, "syntax error: unexpected %s", t.describe())
}

func (p *parser) accept(punct string) bool {
	if p.peek().is(punct) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(punct string) token {
	t := p.peek()
	if !t.is(punct) {
		p.errorf(t, "syntax error: expected '%s', found %s", punct, t.describe())
	}
	return p.next()
}

func (p *parser) expectKeyword(kw string) token {
	t := p.peek()
	if !t.isKeyword(kw) {
		p.errorf(t, "syntax error: expected '%s', found %s", kw, t.describe())
	}
	return p.next()
}

func (p *parser) expectString() *ast.String {
	t := p.peek()
	if t.typ != tokString {
		p.errorf(t, "syntax error: expected a string, found %s", t.describe())
	}
	p.next()
	return &ast.String{Kind: "String", Text: t.text, Loc: ast.NewLoc(t.pos, t.end)}
}

func (p *parser) parseID() *ast.ID {
	t := p.peek()
	if t.typ != tokIdent {
		p.errorf(t, "syntax error: expected an identifier, found %s", t.describe())
	}
	p.next()
	return &ast.ID{Kind: "ID", Name: t.text, Loc: ast.NewLoc(t.pos, t.end)}
}

// atProp reports whether the next tokens introduce a property such as
// "group_by:".
func (p *parser) atProp() bool {
	return p.peek().typ == tokIdent && !p.peek().quoted && p.peekAt(1).is(":")
}

func (p *parser) loc(pos int) ast.Loc {
	return ast.NewLoc(pos, p.last)
}

func (p *parser) parseAnnotations() []*ast.Annotation {
	var notes []*ast.Annotation
	for p.peek().typ == tokAnnotation {
		t := p.next()
		notes = append(notes, &ast.Annotation{Kind: "Annotation", Text: t.text, Loc: ast.NewLoc(t.pos, t.end)})
	}
	return notes
}

func (p *parser) parseDocument() *ast.Document {
	doc := &ast.Document{Kind: "Document"}
	for {
		for p.accept(";") {
		}
		if p.peek().typ == tokEOF {
			break
		}
		doc.Decls = append(doc.Decls, p.parseStatement()...)
	}
	doc.Loc = ast.NewLoc(0, p.last)
	return doc
}

func (p *parser) parseStatement() []ast.Decl {
	notes := p.parseAnnotations()
	t := p.peek()
	if t.isKeyword("import") {
		return []ast.Decl{p.parseImport()}
	}
	if !p.atProp() {
		p.unexpected()
	}
	p.next()
	p.next()
	switch t.text {
	case "source":
		var decls []ast.Decl
		for {
			pos := p.peek().pos
			more := slices.Concat(notes, p.parseAnnotations())
			name := p.parseID()
			p.expectKeyword("is")
			src := p.parseSourceExpr()
			decls = append(decls, &ast.SourceDecl{
				Kind:        "SourceDecl",
				Annotations: more,
				Name:        name,
				Source:      src,
				Loc:         p.loc(pos),
			})
			if !p.accept(",") {
				return decls
			}
		}
	case "query":
		var decls []ast.Decl
		for {
			pos := p.peek().pos
			more := slices.Concat(notes, p.parseAnnotations())
			name := p.parseID()
			p.expectKeyword("is")
			q := p.parseQueryExpr()
			decls = append(decls, &ast.QueryDecl{
				Kind:        "QueryDecl",
				Annotations: more,
				Name:        name,
				Query:       q,
				Loc:         p.loc(pos),
			})
			if !p.accept(",") {
				return decls
			}
		}
	case "run":
		q := p.parseQueryExpr()
		return []ast.Decl{&ast.RunDecl{
			Kind:        "RunDecl",
			Annotations: notes,
			Query:       q,
			Loc:         p.loc(t.pos),
		}}
	case "sql":
		name := p.parseID()
		p.expectKeyword("is")
		conn := p.parseID()
		p.expect(".")
		p.expectKeyword("sql")
		p.expect("(")
		sel := p.expectString()
		p.expect(")")
		return []ast.Decl{&ast.SQLDecl{
			Kind:       "SQLDecl",
			Name:       name,
			Connection: conn,
			Select:     sel,
			Loc:        p.loc(t.pos),
		}}
	}
	p.errorf(t, "syntax error: unknown statement '%s:'", t.text)
	return nil
}

func (p *parser) parseImport() ast.Decl {
	t := p.next()
	decl := &ast.ImportDecl{Kind: "ImportDecl"}
	if p.accept("{") {
		for {
			pos := p.peek().pos
			item := &ast.ImportItem{Kind: "ImportItem"}
			first := p.parseID()
			if p.acceptKeyword("is") {
				// "dst is src"
				item.As = first
				item.Name = p.parseID()
			} else {
				item.Name = first
			}
			item.Loc = p.loc(pos)
			decl.Items = append(decl.Items, item)
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		p.expectKeyword("from")
	}
	decl.URL = p.expectString()
	decl.Loc = p.loc(t.pos)
	return decl
}

func (p *parser) parseSourceExpr() ast.SourceExpr {
	pos := p.peek().pos
	src := p.parseSourceTerm()
	for {
		switch {
		case p.peek().isKeyword("extend"):
			p.next()
			props := p.parseSourceProps()
			src = &ast.ExtendSource{Kind: "ExtendSource", Base: src, Props: props, Loc: p.loc(pos)}
		case p.peek().is("->") || (p.peek().is("+") && isNamed(src)):
			q := p.parseQueryTail(sourceToQuery(src), pos)
			src = &ast.QuerySource{Kind: "QuerySource", Query: q, Loc: p.loc(pos)}
		default:
			return src
		}
	}
}

func isNamed(src ast.SourceExpr) bool {
	_, ok := src.(*ast.NamedSource)
	return ok
}

// sourceToQuery converts a source at the head of a query.  A bare name
// might name a query so it becomes a QueryRef.
func sourceToQuery(src ast.SourceExpr) ast.QueryExpr {
	if named, ok := src.(*ast.NamedSource); ok {
		return &ast.QueryRef{Kind: "QueryRef", Name: named.Name, Loc: named.Loc}
	}
	return &ast.FromSource{Kind: "FromSource", Source: src, Loc: ast.NewLoc(src.Pos(), src.End())}
}

func (p *parser) parseSourceTerm() ast.SourceExpr {
	t := p.peek()
	pos := t.pos
	if p.accept("(") {
		src := p.parseSourceExpr()
		p.expect(")")
		return src
	}
	if t.isKeyword("compose") && p.peekAt(1).is("(") {
		p.next()
		p.next()
		var sources []ast.SourceExpr
		for {
			sources = append(sources, p.parseSourceExpr())
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
		if len(sources) < 2 {
			p.errorf(t, "compose() requires at least two sources")
		}
		return &ast.ComposeSource{Kind: "ComposeSource", Sources: sources, Loc: p.loc(pos)}
	}
	name := p.parseID()
	if p.peek().is(".") && (p.peekAt(1).isKeyword("table") || p.peekAt(1).isKeyword("sql")) && p.peekAt(2).is("(") {
		p.next()
		method := p.next()
		p.next()
		arg := p.expectString()
		p.expect(")")
		if method.text == "table" {
			return &ast.TableSource{Kind: "TableSource", Connection: name, Table: arg, Loc: p.loc(pos)}
		}
		return &ast.SQLSource{Kind: "SQLSource", Connection: name, Select: arg, Loc: p.loc(pos)}
	}
	return &ast.NamedSource{Kind: "NamedSource", Name: name, Loc: name.Loc}
}

func (p *parser) parseSourceProps() []ast.SourceProp {
	p.expect("{")
	var props []ast.SourceProp
	for {
		for p.accept(";") {
		}
		if p.accept("}") {
			return props
		}
		props = append(props, p.parseSourceProp()...)
	}
}

func (p *parser) parseSourceProp() []ast.SourceProp {
	notes := p.parseAnnotations()
	if !p.atProp() {
		p.unexpected()
	}
	t := p.next()
	p.next()
	switch t.text {
	case "dimension", "measure":
		decls := &ast.FieldDecls{Kind: "FieldDecls", Measure: t.text == "measure"}
		for {
			more := slices.Concat(notes, p.parseAnnotations())
			notes = nil
			decls.Fields = append(decls.Fields, p.parseFieldDecl(more))
			p.accept(",")
			if !(p.peek().typ == tokAnnotation || (p.peek().typ == tokIdent && p.peekAt(1).isKeyword("is"))) {
				break
			}
		}
		decls.Loc = p.loc(t.pos)
		return []ast.SourceProp{decls}
	case "join_one", "join_many":
		var props []ast.SourceProp
		for {
			props = append(props, p.parseJoin(t))
			if !p.accept(",") {
				return props
			}
		}
	case "where":
		exprs := p.parseExprList()
		return []ast.SourceProp{&ast.SourceWhere{Kind: "SourceWhere", Exprs: exprs, Loc: p.loc(t.pos)}}
	case "primary_key":
		name := p.parseID()
		return []ast.SourceProp{&ast.PrimaryKey{Kind: "PrimaryKey", Name: name, Loc: p.loc(t.pos)}}
	case "view":
		var props []ast.SourceProp
		for {
			pos := p.peek().pos
			more := slices.Concat(notes, p.parseAnnotations())
			name := p.parseID()
			p.expectKeyword("is")
			view := p.parseViewPipeline()
			props = append(props, &ast.ViewDecl{Kind: "ViewDecl", Annotations: more, Name: name, View: view, Loc: p.loc(pos)})
			if !p.accept(",") {
				return props
			}
		}
	case "except", "accept":
		var names []*ast.ID
		for {
			names = append(names, p.parseID())
			if !p.accept(",") {
				break
			}
		}
		return []ast.SourceProp{&ast.FieldFilter{Kind: "FieldFilter", Accept: t.text == "accept", Names: names, Loc: p.loc(t.pos)}}
	}
	p.errorf(t, "syntax error: '%s:' is not a source property", t.text)
	return nil
}

func (p *parser) parseFieldDecl(notes []*ast.Annotation) *ast.FieldDecl {
	pos := p.peek().pos
	name := p.parseID()
	p.expectKeyword("is")
	e := p.parseExpr()
	decl := &ast.FieldDecl{Kind: "FieldDecl", Annotations: notes, Name: name, Expr: e}
	if p.peek().is("{") && p.peekAt(1).isKeyword("grouped_by") {
		p.next()
		p.next()
		p.expect(":")
		for {
			decl.GroupedBy = append(decl.GroupedBy, p.parsePath())
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
	}
	decl.Loc = p.loc(pos)
	return decl
}

func (p *parser) parseJoin(kw token) ast.SourceProp {
	pos := p.peek().pos
	join := &ast.JoinDecl{
		Kind:         "JoinDecl",
		Relationship: strings.TrimPrefix(kw.text, "join_"),
		Name:         p.parseID(),
	}
	if p.acceptKeyword("is") {
		join.Source = p.parseSourceExpr()
	}
	switch {
	case p.acceptKeyword("on"):
		join.On = p.parseExpr()
	case p.acceptKeyword("with"):
		join.With = p.parsePath()
	default:
		p.errorf(p.peek(), "syntax error: expected 'on' or 'with', found %s", p.peek().describe())
	}
	join.Loc = p.loc(pos)
	return join
}

func (p *parser) parseQueryExpr() ast.QueryExpr {
	pos := p.peek().pos
	var head ast.QueryExpr
	t := p.peek()
	if t.typ == tokIdent && !(t.isKeyword("compose") && p.peekAt(1).is("(")) && !(p.peekAt(1).is(".") && p.peekAt(2).typ == tokIdent) {
		id := p.parseID()
		head = &ast.QueryRef{Kind: "QueryRef", Name: id, Loc: id.Loc}
	} else {
		src := p.parseSourceTerm()
		for p.peek().isKeyword("extend") {
			p.next()
			props := p.parseSourceProps()
			src = &ast.ExtendSource{Kind: "ExtendSource", Base: src, Props: props, Loc: p.loc(pos)}
		}
		head = sourceToQuery(src)
	}
	return p.parseQueryTail(head, pos)
}

func (p *parser) parseQueryTail(q ast.QueryExpr, pos int) ast.QueryExpr {
	for {
		switch {
		case p.accept("->"):
			view := p.parseViewExpr()
			q = &ast.Arrow{Kind: "Arrow", Base: q, View: view, Loc: p.loc(pos)}
		case p.accept("+"):
			view := p.parseViewTerm()
			q = &ast.Refine{Kind: "Refine", Base: q, Refinement: view, Loc: p.loc(pos)}
		default:
			return q
		}
	}
}

// parseViewPipeline parses a possibly multi-stage view as appears in a
// view: or nest: definition.
func (p *parser) parseViewPipeline() ast.ViewExpr {
	pos := p.peek().pos
	view := p.parseViewExpr()
	for p.accept("->") {
		next := p.parseViewExpr()
		view = &ast.ViewArrow{Kind: "ViewArrow", Base: view, Next: next, Loc: p.loc(pos)}
	}
	return view
}

func (p *parser) parseViewExpr() ast.ViewExpr {
	pos := p.peek().pos
	view := p.parseViewTerm()
	for p.accept("+") {
		ref := p.parseViewTerm()
		view = &ast.ViewRefine{Kind: "ViewRefine", Base: view, Refinement: ref, Loc: p.loc(pos)}
	}
	return view
}

func (p *parser) parseViewTerm() ast.ViewExpr {
	pos := p.peek().pos
	if p.peek().typ == tokIdent {
		id := p.parseID()
		return &ast.ViewRef{Kind: "ViewRef", Name: id, Loc: id.Loc}
	}
	p.expect("{")
	var props []ast.SegmentProp
	for {
		for p.accept(";") {
		}
		if p.accept("}") {
			break
		}
		props = append(props, p.parseSegmentProp()...)
	}
	return &ast.SegmentView{Kind: "SegmentView", Props: props, Loc: p.loc(pos)}
}

func (p *parser) parseSegmentProp() []ast.SegmentProp {
	p.parseAnnotations()
	if !p.atProp() {
		p.unexpected()
	}
	t := p.next()
	p.next()
	switch t.text {
	case "group_by", "aggregate", "calculate", "select", "index":
		list := &ast.FieldList{Kind: "FieldList", Op: t.text}
		for {
			list.Items = append(list.Items, p.parseQueryItem())
			if !p.accept(",") {
				break
			}
		}
		list.Loc = p.loc(t.pos)
		return []ast.SegmentProp{list}
	case "nest":
		var props []ast.SegmentProp
		for {
			pos := p.peek().pos
			nest := &ast.Nest{Kind: "Nest", Name: p.parseID()}
			if p.acceptKeyword("is") {
				nest.View = p.parseViewPipeline()
			}
			nest.Loc = p.loc(pos)
			props = append(props, nest)
			if !p.accept(",") {
				return props
			}
		}
	case "where", "having":
		exprs := p.parseExprList()
		return []ast.SegmentProp{&ast.Filter{Kind: "Filter", Op: t.text, Exprs: exprs, Loc: p.loc(t.pos)}}
	case "limit":
		n := p.peek()
		if n.typ != tokNumber {
			p.errorf(n, "syntax error: expected an integer, found %s", n.describe())
		}
		p.next()
		v, err := strconv.Atoi(n.text)
		if err != nil {
			p.errorf(n, "syntax error: limit must be an integer")
		}
		return []ast.SegmentProp{&ast.Limit{Kind: "Limit", Value: v, Loc: p.loc(t.pos)}}
	case "order_by":
		order := &ast.OrderBy{Kind: "OrderBy"}
		for {
			pos := p.peek().pos
			item := &ast.OrderItem{Kind: "OrderItem", Field: p.parseID()}
			if p.peek().isKeyword("asc") || p.peek().isKeyword("desc") {
				item.Dir = p.next().text
			}
			item.Loc = p.loc(pos)
			order.Items = append(order.Items, item)
			if !p.accept(",") {
				break
			}
		}
		order.Loc = p.loc(t.pos)
		return []ast.SegmentProp{order}
	}
	p.errorf(t, "syntax error: '%s:' is not a query property", t.text)
	return nil
}

func (p *parser) parseQueryItem() *ast.QueryItem {
	pos := p.peek().pos
	item := &ast.QueryItem{Kind: "QueryItem"}
	switch {
	case p.accept("*"):
		item.Star = true
	case p.peek().typ == tokIdent && p.peekAt(1).isKeyword("is"):
		item.Name = p.parseID()
		p.next()
		item.Expr = p.parseExpr()
	default:
		e := p.parseExpr()
		if path, ok := e.(*ast.Path); ok && p.accept(".*") {
			item.Wildcard = path
			break
		}
		if _, ok := e.(*ast.Path); !ok {
			p.errorf(p.toks[p.i-1], "syntax error: expression needs a name, e.g., 'name is ...'")
		}
		item.Expr = e
	}
	item.Loc = p.loc(pos)
	return item
}

func (p *parser) parseExprList() []ast.Expr {
	var exprs []ast.Expr
	for {
		exprs = append(exprs, p.parseExpr())
		if !p.accept(",") {
			return exprs
		}
	}
}

func (p *parser) parsePath() *ast.Path {
	pos := p.peek().pos
	path := &ast.Path{Kind: "Path", Elems: []*ast.ID{p.parseID()}}
	for p.peek().is(".") && p.peekAt(1).typ == tokIdent {
		p.next()
		path.Elems = append(path.Elems, p.parseID())
	}
	path.Loc = p.loc(pos)
	return path
}

func (p *parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *parser) binary(op string, lhs, rhs ast.Expr) ast.Expr {
	return &ast.BinaryExpr{Kind: "BinaryExpr", Op: op, LHS: lhs, RHS: rhs, Loc: ast.NewLoc(lhs.Pos(), rhs.End())}
}

func (p *parser) parseOr() ast.Expr {
	e := p.parseAnd()
	for p.acceptKeyword("or") {
		e = p.binary("or", e, p.parseAnd())
	}
	return e
}

func (p *parser) parseAnd() ast.Expr {
	e := p.parseNot()
	for p.acceptKeyword("and") {
		e = p.binary("and", e, p.parseNot())
	}
	return e
}

func (p *parser) parseNot() ast.Expr {
	t := p.peek()
	if p.acceptKeyword("not") {
		operand := p.parseNot()
		return &ast.UnaryExpr{Kind: "UnaryExpr", Op: "not", Operand: operand, Loc: p.loc(t.pos)}
	}
	return p.parseComparison()
}

var comparisons = []string{"=", "!=", "<", "<=", ">", ">=", "~"}

func (p *parser) parseComparison() ast.Expr {
	e := p.parseAdditive()
	for _, op := range comparisons {
		if p.accept(op) {
			return p.binary(op, e, p.parseAdditive())
		}
	}
	return e
}

func (p *parser) parseAdditive() ast.Expr {
	e := p.parseMultiplicative()
	for {
		switch {
		case p.accept("+"):
			e = p.binary("+", e, p.parseMultiplicative())
		case p.accept("-"):
			e = p.binary("-", e, p.parseMultiplicative())
		default:
			return e
		}
	}
}

func (p *parser) parseMultiplicative() ast.Expr {
	e := p.parseUnary()
	for {
		t := p.peek()
		if t.is("*") || t.is("/") || t.is("%") {
			p.next()
			e = p.binary(t.text, e, p.parseUnary())
			continue
		}
		return e
	}
}

func (p *parser) parseUnary() ast.Expr {
	t := p.peek()
	if p.accept("-") {
		operand := p.parseUnary()
		return &ast.UnaryExpr{Kind: "UnaryExpr", Op: "-", Operand: operand, Loc: p.loc(t.pos)}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() ast.Expr {
	t := p.peek()
	switch t.typ {
	case tokNumber:
		p.next()
		return &ast.Literal{Kind: "Literal", Type: "number", Value: t.text, Loc: ast.NewLoc(t.pos, t.end)}
	case tokString:
		p.next()
		return &ast.Literal{Kind: "Literal", Type: "string", Value: t.text, Loc: ast.NewLoc(t.pos, t.end)}
	case tokTime:
		p.next()
		typ, value, err := parseTime(t.text)
		if err != nil {
			p.errorf(t, "Illegal time literal '@%s'", t.text)
		}
		return &ast.Literal{Kind: "Literal", Type: typ, Value: value, Loc: ast.NewLoc(t.pos, t.end)}
	case tokPunct:
		if p.accept("(") {
			e := p.parseExpr()
			p.expect(")")
			return &ast.ParenExpr{Kind: "ParenExpr", Expr: e, Loc: p.loc(t.pos)}
		}
	case tokIdent:
		if !t.quoted {
			switch t.text {
			case "true", "false":
				p.next()
				return &ast.Literal{Kind: "Literal", Type: "boolean", Value: t.text, Loc: ast.NewLoc(t.pos, t.end)}
			case "null":
				p.next()
				return &ast.Literal{Kind: "Literal", Type: "null", Value: "null", Loc: ast.NewLoc(t.pos, t.end)}
			case "pick":
				p.errorf(t, "pick expressions are not supported")
			}
		}
		return p.parseReference()
	}
	p.unexpected()
	return nil
}

// parseReference parses a path, a function call, or a reduction at a path.
func (p *parser) parseReference() ast.Expr {
	pos := p.peek().pos
	first := p.parseID()
	if p.peek().is("(") {
		args := p.parseArgs()
		return &ast.CallExpr{Kind: "CallExpr", Func: first, Args: args, Loc: p.loc(pos)}
	}
	path := &ast.Path{Kind: "Path", Elems: []*ast.ID{first}}
	for p.peek().is(".") && p.peekAt(1).typ == tokIdent {
		p.next()
		id := p.parseID()
		if p.peek().is("(") {
			path.Loc = ast.NewLoc(pos, path.Elems[len(path.Elems)-1].End())
			args := p.parseArgs()
			return &ast.AggCall{Kind: "AggCall", Path: path, Func: id, Args: args, Loc: p.loc(pos)}
		}
		path.Elems = append(path.Elems, id)
	}
	path.Loc = p.loc(pos)
	return path
}

func (p *parser) parseArgs() []ast.Expr {
	p.expect("(")
	var args []ast.Expr
	if p.accept(")") {
		return args
	}
	for {
		args = append(args, p.parseExpr())
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return args
}

// parseTime validates the text of a time literal and normalizes it.  A
// literal without a time of day is a date.
func parseTime(text string) (string, string, error) {
	ts, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return "", "", err
	}
	if !strings.ContainsAny(text, ": T") {
		return "date", ts.Format("2006-01-02"), nil
	}
	return "timestamp", ts.Format("2006-01-02 15:04:05"), nil
}
