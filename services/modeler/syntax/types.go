// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

// MemberKind classifies a direct member of a class body.
type MemberKind string

const (
	KindField       MemberKind = "field"
	KindProperty    MemberKind = "property"
	KindMethod      MemberKind = "method"
	KindConstructor MemberKind = "constructor"

	// KindOther covers every other named declaration in a class body
	// (nested types, events, indexers, operators, destructors). These
	// only appear in ClassNode.Declarations.
	KindOther MemberKind = "other"
)

// MemberNode is a direct member of a class body.
//
// # Description
//
// Offsets are byte-exact and half-open: Source[Start:End] is the full
// member text, attributes and modifiers included, leading indentation and
// trailing comments excluded. Lines are 0-based.
type MemberNode struct {
	// Kind is the member classification.
	Kind MemberKind

	// Name is the declared identifier, empty when it cannot be determined.
	Name string

	// NodeType is the tree-sitter node type (e.g. "method_declaration").
	NodeType string

	// Start is the byte offset of the first byte of the member.
	Start int

	// End is the byte offset just past the last byte of the member.
	End int

	// StartLine is the 0-based line of Start.
	StartLine int

	// EndLine is the 0-based line of the last byte of the member.
	EndLine int
}

// ClassNode is the first class-like declaration in a buffer.
//
// # Description
//
// Class-like covers class, record, struct and interface declarations that
// have a brace-delimited body. BodyOpen and BodyClose are the offsets of
// the body's '{' and '}' characters.
type ClassNode struct {
	// NodeType is the tree-sitter node type (e.g. "class_declaration").
	NodeType string

	// Name is the declared type name.
	Name string

	// Start and End delimit the whole declaration, attributes included.
	Start int
	End   int

	// BodyOpen is the offset of the body's opening brace.
	BodyOpen int

	// BodyClose is the offset of the body's closing brace.
	BodyClose int

	// StartLine, BodyOpenLine, BodyCloseLine are 0-based lines.
	StartLine     int
	BodyOpenLine  int
	BodyCloseLine int

	// Indent is the width of the leading whitespace on the line where the
	// declaration starts. Tabs count as four columns.
	Indent int

	// BaseTypes are the entries of the base list as written, e.g.
	// "AggregateRootBase<Guid>".
	BaseTypes []string

	// Members are the direct field, property, method and constructor
	// members in source order.
	Members []MemberNode

	// Declarations are all named direct declarations in source order,
	// a superset of Members.
	Declarations []MemberNode
}

// FindMethod returns the first method named name, in source order.
func (c *ClassNode) FindMethod(name string) (MemberNode, bool) {
	for _, m := range c.Members {
		if m.Kind == KindMethod && m.Name == name {
			return m, true
		}
	}
	return MemberNode{}, false
}

// LastMethod returns the last method in source order.
func (c *ClassNode) LastMethod() (MemberNode, bool) {
	for i := len(c.Members) - 1; i >= 0; i-- {
		if c.Members[i].Kind == KindMethod {
			return c.Members[i], true
		}
	}
	return MemberNode{}, false
}

// LastMember returns the last member of any kind in source order.
func (c *ClassNode) LastMember() (MemberNode, bool) {
	if len(c.Members) == 0 {
		return MemberNode{}, false
	}
	return c.Members[len(c.Members)-1], true
}

// MemberIndent is the canonical indentation width of direct members.
func (c *ClassNode) MemberIndent() int {
	return c.Indent + IndentWidth
}

// Tree is an immutable snapshot of one parsed buffer.
//
// # Description
//
// A Tree is only valid for the exact bytes it was parsed from. Any edit to
// the buffer invalidates every offset it holds; callers re-parse instead of
// adjusting offsets.
type Tree struct {
	source    []byte
	class     *ClassNode
	namespace string
	hasErrors bool
}

// Class returns the first class-like declaration.
//
// The boolean is false when the buffer holds no class-like declaration.
// This is not an error: mutation callers fall back to appending.
func (t *Tree) Class() (*ClassNode, bool) {
	if t == nil || t.class == nil {
		return nil, false
	}
	return t.class, true
}

// Namespace returns the name of the first namespace declaration, block or
// file-scoped, or "" when there is none.
func (t *Tree) Namespace() string {
	if t == nil {
		return ""
	}
	return t.namespace
}

// HasErrors reports whether the parser recovered from syntax errors.
func (t *Tree) HasErrors() bool {
	return t != nil && t.hasErrors
}

// Source returns the bytes the tree was parsed from.
func (t *Tree) Source() []byte {
	if t == nil {
		return nil
	}
	return t.source
}
