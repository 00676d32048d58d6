// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
)

// EnforceConventions returns a normalized copy of intents.
//
// # Description
//
// For every intent the tag is normalized, top-level payload is folded into
// Details, and a method's location becomes the intent placement when none
// is given. Repository intents additionally get:
//
//   - custom methods that are async unless stated otherwise,
//   - an "Async" suffix on every custom method name,
//   - an empty (never nil) parameter list.
//
// The input slice and its intents are not modified.
func EnforceConventions(intents []Intent) []Intent {
	out := make([]Intent, 0, len(intents))
	for _, in := range intents {
		in = foldPayload(in)
		if in.Kind == AddRepository {
			in.Details.CustomMethods = repositoryMethods(in.Details.CustomMethods)
		}
		out = append(out, in)
	}
	return out
}

// foldPayload moves top-level payload fields into Details. The returned
// intent shares no slices with the input.
func foldPayload(in Intent) Intent {
	in.Kind = in.Kind.Normalize()

	d := Details{
		Description:     in.Details.Description,
		Properties:      append(clonePlain(in.Details.Properties), in.Properties...),
		Commands:        append(cloneMethods(in.Details.Commands), cloneMethods(in.Methods)...),
		Events:          clonePlain(in.Details.Events),
		CustomMethods:   append(cloneMethods(in.Details.CustomMethods), cloneMethods(in.CustomMethods)...),
		Implementations: append(clonePlain(in.Details.Implementations), in.Implementations...),
	}
	if len(d.Implementations) == 0 && in.PersistenceProvider != "" {
		d.Implementations = []RepositoryImplementation{{
			Persistence: in.PersistenceProvider,
			Database:    in.DatabaseProvider,
		}}
	}
	in.Details = d
	in.Properties, in.Methods, in.CustomMethods, in.Implementations = nil, nil, nil, nil

	if in.Method != nil {
		m := cloneMethod(*in.Method)
		in.Method = &m
		if in.Placement == nil && m.Location != nil {
			loc := *m.Location
			in.Placement = &loc
		}
	}
	return in
}

func repositoryMethods(methods []Method) []Method {
	for i := range methods {
		m := &methods[i]
		if m.IsAsync == nil {
			async := true
			m.IsAsync = &async
		}
		if m.Name != "" && !strings.HasSuffix(m.Name, "Async") {
			m.Name += "Async"
		}
		if m.Parameters == nil {
			m.Parameters = []plan.Parameter{}
		}
	}
	return methods
}

// Integrate infers aggregate properties from repository query methods.
//
// # Description
//
// When an add_repository intent and an add_aggregate intent share a
// target, every custom method named GetBy<X>Async, FindBy<X>Async or
// FindWith<X>Async implies an aggregate property named PascalCase(X). A
// missing property is added with the type of the method parameter whose
// PascalCase name matches, defaulting to string. Existing properties are
// never changed and no property is added twice.
//
// Intents are expected to have passed EnforceConventions. The returned
// slice is a copy; the input is not modified.
func Integrate(intents []Intent) []Intent {
	out := make([]Intent, len(intents))
	copy(out, intents)

	aggregates := make(map[string]int)
	for i, in := range out {
		if in.Kind == AddAggregate {
			aggregates[in.Target] = i
		}
	}

	for _, in := range out {
		if in.Kind != AddRepository {
			continue
		}
		idx, ok := aggregates[in.Target]
		if !ok {
			continue
		}
		agg := &out[idx]
		props := clonePlain(agg.Details.Properties)
		added := injectQueryProperties(props, in.Details.CustomMethods)
		if len(added) == 0 {
			continue
		}
		agg.Details.Properties = append(props, added...)

		names := make([]string, 0, len(added))
		for _, p := range added {
			names = append(names, p.Name)
		}
		slog.Default().Info("inferred aggregate properties from repository queries",
			slog.String("component", "intent"),
			slog.String("aggregate", agg.Target),
			slog.Any("properties", names))
	}
	return out
}

var queryPrefixes = []string{"GetBy", "FindBy", "FindWith"}

func injectQueryProperties(existing []plan.PropertyDescriptor, methods []Method) []plan.PropertyDescriptor {
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[p.Name] = struct{}{}
	}

	var added []plan.PropertyDescriptor
	for _, m := range methods {
		base, ok := strings.CutSuffix(m.Name, "Async")
		if !ok {
			continue
		}
		var suffix string
		for _, prefix := range queryPrefixes {
			if rest, found := strings.CutPrefix(base, prefix); found {
				suffix = rest
				break
			}
		}
		name := PascalCase(suffix)
		if name == "" {
			continue
		}
		if _, dup := known[name]; dup {
			continue
		}

		typ := "string"
		for _, param := range m.Parameters {
			if PascalCase(param.Name) == name && param.Type != "" {
				typ = param.Type
				break
			}
		}
		known[name] = struct{}{}
		added = append(added, plan.PropertyDescriptor{Name: name, Type: typ})
	}
	return added
}

// PascalCase splits s into words at case boundaries and joins them
// capitalized: "favouriteColor" -> "FavouriteColor", "HTMLParser" ->
// "HtmlParser", "first_name" -> "FirstName". Characters other than ASCII
// letters separate words and are dropped.
func PascalCase(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(strings.ToLower(w[1:]))
	}
	return b.String()
}

// splitWords yields runs of an optional capital followed by lower-case
// letters, and upper-case runs not followed by a lower-case letter.
func splitWords(s string) []string {
	var words []string
	n := len(s)
	for i := 0; i < n; {
		switch {
		case isUpper(s[i]) && i+1 < n && isLower(s[i+1]):
			j := i + 1
			for j < n && isLower(s[j]) {
				j++
			}
			words = append(words, s[i:j])
			i = j
		case isLower(s[i]):
			j := i
			for j < n && isLower(s[j]) {
				j++
			}
			words = append(words, s[i:j])
			i = j
		case isUpper(s[i]):
			j := i
			for j < n && isUpper(s[j]) {
				j++
			}
			// The last capital starts the next word when a lower-case
			// letter follows it.
			if j < n && isLower(s[j]) {
				j--
			}
			words = append(words, s[i:j])
			i = j
		default:
			i++
		}
	}
	return words
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func clonePlain[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}

func cloneMethods(ms []Method) []Method {
	if ms == nil {
		return nil
	}
	out := make([]Method, len(ms))
	for i, m := range ms {
		out[i] = cloneMethod(m)
	}
	return out
}

func cloneMethod(m Method) Method {
	m.Parameters = clonePlain(m.Parameters)
	if m.IsAsync != nil {
		v := *m.IsAsync
		m.IsAsync = &v
	}
	return m
}
