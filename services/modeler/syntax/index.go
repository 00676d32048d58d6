// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax parses C# source buffers with tree-sitter and exposes the
// first class-like declaration and its direct members with byte offsets.
//
// The index is the single source of structural truth for the mutation
// engine and the convention formatter. Every offset-dependent decision
// starts from a fresh Parse of the current buffer.
package syntax

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// File size constants for input validation.
const (
	// DefaultMaxFileSize is the maximum buffer size the index will parse (4MB).
	DefaultMaxFileSize = 4 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (512KB).
	WarnFileSize = 512 * 1024
)

// classLikeTypes are the declaration node types treated as classes.
var classLikeTypes = map[string]bool{
	"class_declaration":     true,
	"record_declaration":    true,
	"struct_declaration":    true,
	"interface_declaration": true,
}

// memberKinds maps body declaration node types to member kinds.
var memberKinds = map[string]MemberKind{
	"field_declaration":       KindField,
	"property_declaration":    KindProperty,
	"method_declaration":      KindMethod,
	"constructor_declaration": KindConstructor,
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithMaxFileSize sets the maximum buffer size Parse accepts.
//
// Non-positive values are ignored.
func WithMaxFileSize(bytes int) IndexOption {
	return func(ix *Index) {
		if bytes > 0 {
			ix.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(logger *slog.Logger) IndexOption {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// Index parses C# buffers into Trees.
//
// # Description
//
// Each Parse call creates its own tree-sitter parser, extracts the class
// structure into plain Go values and closes the native tree before
// returning. The returned Tree holds no native resources.
//
// # Thread Safety
//
// Index is safe for concurrent use.
type Index struct {
	maxFileSize int
	logger      *slog.Logger
}

// NewIndex creates an Index with the given options.
func NewIndex(opts ...IndexOption) *Index {
	ix := &Index{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default().With(slog.String("component", "syntax")),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Parse builds a Tree for src.
//
// # Description
//
// Locates the first class-like declaration (depth-first, in source order)
// that has a brace-delimited body, and records its direct members. A
// buffer without such a declaration yields a Tree whose Class() reports
// false; that is not an error.
//
// # Inputs
//
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - src: Raw C# source. Must be valid UTF-8.
//
// # Outputs
//
//   - *Tree: Parsed snapshot of src. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
//
// # Thread Safety
//
// Safe for concurrent use.
func (ix *Index) Parse(ctx context.Context, src []byte) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if len(src) > ix.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(src), ix.maxFileSize)
	}
	if len(src) > WarnFileSize {
		ix.logger.Warn("parsing large buffer", slog.Int("size_bytes", len(src)))
	}
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &Tree{source: src}

	root := tree.RootNode()
	if root == nil {
		return result, nil
	}
	result.hasErrors = root.HasError()
	result.namespace = findNamespace(root, src)

	if node := findClass(root); node != nil {
		result.class = buildClass(node, src)
		if result.class != nil && src[result.class.BodyClose] != '}' {
			result.hasErrors = true
		}
	}

	return result, nil
}

// ParseString is Parse for string buffers.
func (ix *Index) ParseString(ctx context.Context, src string) (*Tree, error) {
	return ix.Parse(ctx, []byte(src))
}

// findClass returns the first class-like node with a body, depth-first.
func findClass(node *sitter.Node) *sitter.Node {
	if classLikeTypes[node.Type()] && bodyOf(node) != nil {
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := findClass(node.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}

// findNamespace returns the name of the first namespace declaration,
// depth-first.
func findNamespace(node *sitter.Node, src []byte) string {
	switch node.Type() {
	case "namespace_declaration", "file_scoped_namespace_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			return name.Content(src)
		}
	case "class_declaration", "record_declaration", "struct_declaration", "interface_declaration":
		return ""
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if ns := findNamespace(node.NamedChild(i), src); ns != "" {
			return ns
		}
	}
	return ""
}

// bodyOf returns the declaration_list child of a class-like node.
func bodyOf(node *sitter.Node) *sitter.Node {
	if body := node.ChildByFieldName("body"); body != nil && body.Type() == "declaration_list" {
		return body
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "declaration_list" {
			return child
		}
	}
	return nil
}

func buildClass(node *sitter.Node, src []byte) *ClassNode {
	body := bodyOf(node)
	if body == nil || body.EndByte() == 0 {
		return nil
	}

	text := string(src)
	start := int(node.StartByte())
	lineStart := LineStart(text, start)

	class := &ClassNode{
		NodeType:      node.Type(),
		Name:          declaredName(node, src),
		Start:         start,
		End:           int(node.EndByte()),
		BodyOpen:      int(body.StartByte()),
		BodyClose:     int(body.EndByte()) - 1,
		StartLine:     int(node.StartPoint().Row),
		BodyOpenLine:  int(body.StartPoint().Row),
		BodyCloseLine: int(body.EndPoint().Row),
		Indent:        LeadingWidth(text[lineStart:LineEnd(text, start)]),
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "base_list" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			class.BaseTypes = append(class.BaseTypes, child.NamedChild(j).Content(src))
		}
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		kind, ok := declarationKind(child)
		if !ok {
			continue
		}

		member := MemberNode{
			Kind:      kind,
			Name:      declaredName(child, src),
			NodeType:  child.Type(),
			Start:     int(child.StartByte()),
			End:       int(child.EndByte()),
			StartLine: int(child.StartPoint().Row),
			EndLine:   int(child.EndPoint().Row),
		}

		class.Declarations = append(class.Declarations, member)
		if kind != KindOther {
			class.Members = append(class.Members, member)
		}
	}

	return class
}

// declarationKind classifies a named child of a class body.
//
// Comments, preprocessor directives and error nodes are not declarations;
// they stay part of the text between declarations.
func declarationKind(node *sitter.Node) (MemberKind, bool) {
	typ := node.Type()
	if kind, ok := memberKinds[typ]; ok {
		return kind, true
	}
	switch {
	case typ == "comment", typ == "ERROR":
		return "", false
	case len(typ) >= 6 && typ[:6] == "prepro":
		return "", false
	case len(typ) > len("_declaration") && typ[len(typ)-len("_declaration"):] == "_declaration":
		return KindOther, true
	default:
		return "", false
	}
}

// nameStopTypes end the search for a declaration's identifier.
var nameStopTypes = map[string]bool{
	"parameter_list":          true,
	"accessor_list":           true,
	"arrow_expression_clause": true,
	"block":                   true,
	"base_list":               true,
	"declaration_list":        true,
	"type_parameter_list":     true,
	"=":                       true,
	";":                       true,
}

// declaredName extracts the identifier a declaration introduces.
func declaredName(node *sitter.Node, src []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}

	if node.Type() == "field_declaration" || node.Type() == "event_field_declaration" {
		return fieldName(node, src)
	}

	// Fall back to the last identifier before the parameter list, accessor
	// list or body. The return type may itself be an identifier.
	last := ""
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if nameStopTypes[child.Type()] {
			break
		}
		if child.Type() == "identifier" {
			last = child.Content(src)
		}
	}
	return last
}

// fieldName returns the first declarator name of a field declaration.
func fieldName(node *sitter.Node, src []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "variable_declaration" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			decl := child.NamedChild(j)
			if decl.Type() != "variable_declarator" {
				continue
			}
			if name := decl.ChildByFieldName("name"); name != nil {
				return name.Content(src)
			}
			for k := 0; k < int(decl.NamedChildCount()); k++ {
				if id := decl.NamedChild(k); id.Type() == "identifier" {
					return id.Content(src)
				}
			}
		}
	}
	return ""
}
