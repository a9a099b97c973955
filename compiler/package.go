package compiler

import (
	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/parser"
	"github.com/brimdata/semq/compiler/srcfiles"
)

// Parse parses text as the document at url.  Syntax errors are logged to
// the returned list as well as returned.
func Parse(url, text string) (*ast.Document, *srcfiles.List, error) {
	files := srcfiles.NewList(url, text)
	doc, err := parser.Parse(files)
	return doc, files, err
}

// Translate translates text as the document at url with everything in u
// supplied up front.  The response carries Needs if u left anything out.
func Translate(url, text string, u Update, opts ...Option) *Response {
	t := NewTranslator(url, append([]Option{WithText(text)}, opts...)...)
	t.Update(u)
	return t.Step()
}
