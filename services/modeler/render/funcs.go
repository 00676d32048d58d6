// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"fmt"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

var funcMap = template.FuncMap{
	"get":       get,
	"list":      list,
	"name":      name,
	"typeOf":    typeOf,
	"pascal":    Pascal,
	"camel":     Camel,
	"oneline":   oneline,
	"returns":   returns,
	"params":    params,
	"signature": signature,
	"lower":     strings.ToLower,
}

// get returns m[key] as a string, or "" when absent.
func get(v any, key string) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	switch val := m[key].(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// list returns m[key] as a slice, or nil when absent.
func list(v any, key string) []any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	items, _ := m[key].([]any)
	return items
}

// name returns the "name" of a descriptor, or the value itself when the
// descriptor is a bare string.
func name(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return get(v, "name")
}

// typeOf returns the "type" of a descriptor, defaulting to string.
func typeOf(v any) string {
	if t := strings.TrimSpace(get(v, "type")); t != "" {
		return t
	}
	return "string"
}

func truthy(v any, key string) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

// returns resolves a method descriptor's return type.
//
// return_type wins over returns; both default to void. Async methods
// return Task or Task<T>.
func returns(v any) string {
	rt := strings.TrimSpace(get(v, "return_type"))
	if rt == "" {
		rt = strings.TrimSpace(get(v, "returns"))
	}
	if rt == "" {
		rt = "void"
	}
	if !truthy(v, "is_async") || strings.HasPrefix(rt, "Task") || strings.HasPrefix(rt, "ValueTask") {
		return rt
	}
	if rt == "void" {
		return "Task"
	}
	return "Task<" + rt + ">"
}

// params renders "Type name, Type name" for a method descriptor.
func params(v any) string {
	items := list(v, "parameters")
	parts := make([]string, 0, len(items))
	for _, p := range items {
		parts = append(parts, typeOf(p)+" "+Camel(name(p)))
	}
	return strings.Join(parts, ", ")
}

// signature is params plus a trailing CancellationToken for async methods.
func signature(v any) string {
	ps := params(v)
	if !truthy(v, "is_async") {
		return ps
	}
	if ps == "" {
		return "CancellationToken ct"
	}
	return ps + ", CancellationToken ct"
}

// oneline collapses all whitespace runs to single spaces.
func oneline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Pascal upper-cases the first letter of s.
func Pascal(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Camel lower-cases the first letter of s.
func Camel(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
