// Package ast declares the types used to represent syntax trees for
// semantic model documents.
package ast

// This module is derived from the GO AST design pattern in
// https://golang.org/pkg/go/ast/
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

import "strings"

// Document is the parse of one document: its statements in textual order.
type Document struct {
	Kind  string `json:"kind" unpack:""`
	Decls []Decl `json:"decls"`
	Loc   `json:"loc"`
}

type ID struct {
	Kind string `json:"kind" unpack:""`
	Name string `json:"name"`
	Loc  `json:"loc"`
}

// String is a quoted string constant appearing outside of an expression,
// e.g., a table path or an import URL.
type String struct {
	Kind string `json:"kind" unpack:""`
	Text string `json:"text"`
	Loc  `json:"loc"`
}

// Annotation is a "#" line preceding a statement or definition.
type Annotation struct {
	Kind string `json:"kind" unpack:""`
	Text string `json:"text"`
	Loc  `json:"loc"`
}

// Persist reports whether the annotations ask for the annotated source to
// be materialized.
func Persist(notes []*Annotation) bool {
	for _, n := range notes {
		if strings.HasPrefix(n.Text, "#@") && strings.Contains(n.Text[2:], "persist") {
			return true
		}
	}
	return false
}
