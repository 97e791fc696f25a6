// Package importer lexes and parses FHIR Shorthand source text into an
// ast.Document, using a small state machine over a flat stream of
// tokens rather than a recursive-descent grammar with backtracking,
// because the shorthand grammar is line-oriented: each physical line
// (after triple-quoted string merging) is independently classifiable
// as a header, a metadata binding, or a rule, using only its first one
// or two tokens.
//
// An Importer is single-use: once Parse has been called, a second call
// returns an error and an empty Document, matching the "importer is
// single-use" invariant from the component design.
package importer

import (
	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/diag"
)

// Importer turns one source file's text into an ast.Document.
type Importer struct {
	used bool
}

// New creates a fresh, reusable-once Importer.
func New() *Importer {
	return &Importer{}
}

// Parse lexes and parses source (the contents of file) into a Document,
// recording syntax diagnostics to sink. A syntax error on one line drops
// that line and continues parsing; it never aborts the whole file.
func (imp *Importer) Parse(file string, source string, sink *diag.Sink) (*ast.Document, error) {
	if imp.used {
		sink.Error(file, nil, "importer reused; an Importer instance may only Parse once")
		return &ast.Document{File: file}, errReused
	}
	imp.used = true

	lines := lex(source)
	p := &parser{file: file, lines: lines, sink: sink, doc: &ast.Document{File: file}}
	p.run()
	resolveAliases(p.doc, p.aliasTable())
	return p.doc, nil
}
