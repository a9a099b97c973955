// Package api defines the request and response types of the translation
// service.
package api

import (
	"context"
	"encoding/json"

	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/model"
)

const RequestIDHeader = "X-Request-ID"

// PlanCacheHeader reports "hit" or "miss" on a translate response.
const PlanCacheHeader = "X-Plan-Cache"

type contextKey string

const requestIDKey contextKey = RequestIDHeader

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		return v.(string)
	}
	return ""
}

type Error struct {
	Type     string                `json:"type"`
	Message  string                `json:"error"`
	Problems []compiler.Diagnostic `json:"problems,omitempty"`
}

func (e Error) Error() string {
	return e.Message
}

type VersionResponse struct {
	Version string `json:"version"`
}

// TranslateRequest asks the service to translate Text as the document at
// URL.  When Text is empty the service reads URL itself.  Imports and
// schemas given here are used instead of fetching them.
type TranslateRequest struct {
	URL     string                        `json:"url"`
	Text    string                        `json:"text,omitempty"`
	Imports map[string]string             `json:"imports,omitempty"`
	Tables  map[string]*model.TableSchema `json:"tables,omitempty"`
	SQL     map[string]*model.TableSchema `json:"sql,omitempty"`
}

// Update returns the values the request supplies up front.
func (r *TranslateRequest) Update() compiler.Update {
	return compiler.Update{URLs: r.Imports, Tables: r.Tables, CompileSQL: r.SQL}
}

// Cacheable reports whether a finished translation of r can be reused.
// Such a translation depends on its URL and text and on the documents and
// schemas it fetches, which are checked again before reuse.
func (r *TranslateRequest) Cacheable() bool {
	return r.Text != "" && len(r.Imports) == 0 && len(r.Tables) == 0 && len(r.SQL) == 0
}

// TranslateResponse is the client's view of a compiler.Response.  The
// model is left encoded.
type TranslateResponse struct {
	Final            bool                  `json:"final"`
	Translated       json.RawMessage       `json:"translated,omitempty"`
	Problems         []compiler.Diagnostic `json:"problems,omitempty"`
	ModelWasModified bool                  `json:"model_was_modified,omitempty"`
}
