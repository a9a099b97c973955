// Package compiler drives the translation of a document and the documents
// it imports.  A Translator never performs I/O: each call to Step either
// finishes or reports the imports and schemas it still needs, which the
// host supplies with Update before stepping again.
package compiler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/compiler/semantic"
	"github.com/brimdata/semq/compiler/srcfiles"
)

type state int

const (
	stateUnresolved state = iota
	stateAwaiting
	stateTranslated
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateUnresolved:
		return "unresolved"
	case stateAwaiting:
		return "awaiting"
	case stateTranslated:
		return "translated"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Needs lists the keys a translation is waiting on.  Tables and CompileSQL
// keys are made with semantic.TableKey and semantic.SQLKey.
type Needs struct {
	URLs       []string `json:"urls,omitempty"`
	Tables     []string `json:"tables,omitempty"`
	CompileSQL []string `json:"compile_sql,omitempty"`
}

func (n *Needs) Empty() bool {
	return len(n.URLs) == 0 && len(n.Tables) == 0 && len(n.CompileSQL) == 0
}

type Update struct {
	URLs       map[string]string             `json:"urls,omitempty"`
	Tables     map[string]*model.TableSchema `json:"tables,omitempty"`
	CompileSQL map[string]*model.TableSchema `json:"compile_sql,omitempty"`
	Errors     Errors                        `json:"errors,omitempty"`
}

// Errors reports keys that could not be supplied, with the reason.
type Errors struct {
	URLs       map[string]string `json:"urls,omitempty"`
	Tables     map[string]string `json:"tables,omitempty"`
	CompileSQL map[string]string `json:"compile_sql,omitempty"`
}

type Diagnostic struct {
	Severity string          `json:"severity"`
	Message  string          `json:"message"`
	At       *model.Location `json:"at,omitempty"`
}

type Translated struct {
	ModelDef  *model.ModelDef `json:"model_def"`
	QueryList []*model.Query  `json:"query_list"`
}

// Response is the result of a Step.  Exactly one of Needs and the final
// fields is meaningful: Needs is non-nil until the translation finishes.
type Response struct {
	Needs            *Needs       `json:"needs,omitempty"`
	Translated       *Translated  `json:"translated,omitempty"`
	Problems         []Diagnostic `json:"problems,omitempty"`
	ModelWasModified bool         `json:"model_was_modified,omitempty"`
	// Final is true once the translation has finished.
	Final bool `json:"final"`
}

type Option func(*Translator)

// WithText supplies the text of the root document up front.
func WithText(text string) Option {
	return func(t *Translator) {
		t.urls.Define(t.root, text)
	}
}

// WithUpdate supplies values before the first Step.
func WithUpdate(u Update) Option {
	return func(t *Translator) {
		t.Update(u)
	}
}

// WithBaseModel makes the root document extend m: its entries are in
// scope and it is the reference for ModelWasModified.
func WithBaseModel(m *model.ModelDef) Option {
	return func(t *Translator) {
		t.base = m
	}
}

type Translator struct {
	root   string
	base   *model.ModelDef
	urls   *Zone[string]
	tables *Zone[*model.TableSchema]
	sql    *Zone[*model.TableSchema]
	// docs is the arena; docs[0] is the root once its text arrives.
	docs     []*document
	byURL    map[string]int
	state    state
	response *Response
}

func NewTranslator(url string, opts ...Option) *Translator {
	t := &Translator{
		root:   url,
		urls:   NewZone[string](),
		tables: NewZone[*model.TableSchema](),
		sql:    NewZone[*model.TableSchema](),
		byURL:  make(map[string]int),
	}
	t.urls.Reference(url, nil)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Translator) URL() string {
	return t.root
}

// Update supplies external values.  It may be called any number of times
// with the same values.  Updates after the translation has finished are
// ignored.
func (t *Translator) Update(u Update) {
	if t.done() {
		return
	}
	for url, text := range u.URLs {
		t.urls.Define(url, text)
	}
	for key, schema := range u.Tables {
		t.tables.Define(key, schema)
	}
	for key, schema := range u.CompileSQL {
		t.sql.Define(key, schema)
	}
	for url, msg := range u.Errors.URLs {
		t.urls.DefineError(url, msg)
	}
	for key, msg := range u.Errors.Tables {
		t.tables.DefineError(key, msg)
	}
	for key, msg := range u.Errors.CompileSQL {
		t.sql.DefineError(key, msg)
	}
}

func (t *Translator) done() bool {
	return t.state == stateTranslated || t.state == stateFailed
}

// UnresolvedNeeds returns what the translation is waiting on after
// loading every document whose text has arrived.
func (t *Translator) UnresolvedNeeds() *Needs {
	t.load()
	return &Needs{
		URLs:       t.urls.Needs(),
		Tables:     t.tables.Needs(),
		CompileSQL: t.sql.Needs(),
	}
}

// load creates and parses every document reachable from the root whose
// text has been supplied and references everything they mention.
func (t *Translator) load() {
	visited := make(map[string]bool)
	var walk func(url string)
	walk = func(url string) {
		if visited[url] {
			return
		}
		visited[url] = true
		doc := t.document(url)
		if doc == nil {
			return
		}
		for _, child := range doc.imports {
			walk(child)
		}
	}
	walk(t.root)
}

// document returns the arena entry for url, creating it if its text is
// present.  A new document is parsed and its needs collected right away.
func (t *Translator) document(url string) *document {
	if k, ok := t.byURL[url]; ok {
		return t.docs[k]
	}
	e := t.urls.Get(url)
	if e.Status != ZonePresent {
		return nil
	}
	doc := newDocument(url, len(t.docs), e.Value)
	t.byURL[url] = doc.index
	t.docs = append(t.docs, doc)
	doc.collectNeeds(t)
	return doc
}

// Step advances the translation as far as the supplied values allow.
func (t *Translator) Step() *Response {
	if t.done() {
		return t.response
	}
	if e := t.urls.Get(t.root); e.Status == ZoneError {
		return t.fail(Diagnostic{
			Severity: string(srcfiles.SeverityError),
			Message:  fmt.Sprintf("Source for '%s' missing: %s", t.root, e.Message),
			At:       &model.Location{URL: t.root},
		})
	}
	needs := t.UnresolvedNeeds()
	if !needs.Empty() {
		t.state = stateAwaiting
		return &Response{Needs: needs}
	}
	root := t.docs[t.byURL[t.root]]
	m := t.analyze(root, t.base)
	problems := t.problems()
	resp := &Response{
		Problems:         problems,
		ModelWasModified: modified(m, t.base),
		Final:            true,
	}
	if hasErrors(problems) {
		t.state = stateFailed
	} else {
		t.state = stateTranslated
		resp.Translated = &Translated{ModelDef: m, QueryList: m.QueryList}
	}
	t.response = resp
	return resp
}

func (t *Translator) fail(d Diagnostic) *Response {
	t.state = stateFailed
	t.response = &Response{Problems: []Diagnostic{d}, Final: true}
	return t.response
}

// analyze runs the semantic pass over doc once.  A document that failed
// to parse contributes an empty model.
func (t *Translator) analyze(doc *document, base *model.ModelDef) *model.ModelDef {
	if doc.model != nil {
		return doc.model
	}
	if doc.tree == nil {
		doc.model = model.NewModelDef(doc.url)
		return doc.model
	}
	doc.analyzing = true
	m := semantic.Analyze(doc.tree, doc.url, base, &resolver{t: t, doc: doc}, doc.files)
	doc.analyzing = false
	doc.model = m
	return m
}

// problems gathers the diagnostics of every document, in arena order and
// then by position within each document.
func (t *Translator) problems() []Diagnostic {
	var out []Diagnostic
	for _, doc := range t.docs {
		errs := slices.Clone(doc.files.Diagnostics())
		slices.SortStableFunc(errs, func(a, b *srcfiles.Error) int {
			return cmp.Compare(a.Pos, b.Pos)
		})
		for _, e := range errs {
			start, end := doc.files.Span(e.Pos, e.End)
			out = append(out, Diagnostic{
				Severity: string(e.Severity),
				Message:  e.Msg,
				At: &model.Location{
					URL: doc.url,
					Range: model.Range{
						Start: model.Position{Line: start.Line - 1, Character: start.Column - 1},
						End:   model.Position{Line: end.Line - 1, Character: end.Column - 1},
					},
				},
			})
		}
	}
	return out
}

func hasErrors(problems []Diagnostic) bool {
	return slices.ContainsFunc(problems, func(d Diagnostic) bool {
		return d.Severity == string(srcfiles.SeverityError)
	})
}

// modified reports whether m names an entry that base does not.
func modified(m, base *model.ModelDef) bool {
	if base == nil {
		return len(m.Order) > 0
	}
	for _, name := range m.Order {
		if _, ok := base.Contents[name]; !ok {
			return true
		}
	}
	return false
}

// String formats d as "url:line:column: severity: message" with 1-based
// line and column.
func (d Diagnostic) String() string {
	if d.At == nil {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	start := d.At.Range.Start
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.At.URL, start.Line+1, start.Character+1, d.Severity, d.Message)
}

// FormatProblems formats each diagnostic on its own line.
func FormatProblems(problems []Diagnostic) string {
	var b strings.Builder
	for _, d := range problems {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
