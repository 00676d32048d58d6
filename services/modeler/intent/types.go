// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent models the structured modeling intents distilled from a
// user request, and the pre-planning passes that normalize them.
//
// Intents arrive as loosely shaped JSON from a language model. Decoding is
// structural only: missing fields become zero values and unknown fields
// are ignored. Domain meaning is assigned later by the planner.
package intent

import (
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
)

// Kind is the intent tag, the "intent" field on the wire.
type Kind string

const (
	AddAggregate           Kind = "add_aggregate"
	RemoveAggregate        Kind = "remove_aggregate"
	AddAggregateProperty   Kind = "add_aggregate_property"
	RemoveAggregateProp    Kind = "remove_aggregate_property"
	AddAggregateMethod     Kind = "add_aggregate_method"
	RemoveAggregateMethod  Kind = "remove_aggregate_method"
	AddValueObject         Kind = "add_value_object"
	RemoveValueObject      Kind = "remove_value_object"
	AddValueObjectProperty Kind = "add_value_object_property"
	RemoveValueObjectProp  Kind = "remove_value_object_property"
	AddRepository          Kind = "add_repository"
	AddRepositoryMethod    Kind = "add_repository_method"
	RemoveRepository       Kind = "remove_repository"
	RemoveRepositoryMethod Kind = "remove_repository_method"

	// Control tags produced by the source rather than the user.
	Unsure      Kind = "unsure"
	Unclear     Kind = "unclear"
	None        Kind = "none"
	Greeting    Kind = "greeting"
	Error       Kind = "error"
	Unsupported Kind = "unsupported"
)

// Normalize lower-cases and trims the tag.
func (k Kind) Normalize() Kind {
	return Kind(strings.ToLower(strings.TrimSpace(string(k))))
}

// IsActionable reports whether the tag names a modeling action rather than
// a control or empty tag.
func (k Kind) IsActionable() bool {
	switch k.Normalize() {
	case "", Unsure, Unclear, None, Greeting, Error, Unsupported:
		return false
	default:
		return true
	}
}

// ModelingKinds lists every modeling tag offered to the language model.
func ModelingKinds() []Kind {
	return []Kind{
		AddAggregate, RemoveAggregate,
		AddAggregateProperty, RemoveAggregateProp,
		AddAggregateMethod, RemoveAggregateMethod,
		AddValueObject, RemoveValueObject,
		AddValueObjectProperty, RemoveValueObjectProp,
		AddRepository, AddRepositoryMethod,
		RemoveRepository, RemoveRepositoryMethod,
	}
}

// SupportedBuildingBlocks lists the building block types intents can
// target.
func SupportedBuildingBlocks() []string {
	return []string{"aggregate_root", "repository", "value_object"}
}

// Persistence and database providers understood by the planner.
const (
	PersistenceOpenDDD = "OpenDDD"
	PersistenceEfCore  = "EfCore"
	DatabasePostgres   = "Postgres"
)

// MethodImplementation says how a method body should be produced.
type MethodImplementation struct {
	Type string `json:"type,omitempty"`
	Hint string `json:"hint,omitempty"`
}

// Method is a method as described by an intent.
//
// IsAsync is a pointer so that conventions can tell "absent" from false.
type Method struct {
	Name           string                `json:"name"`
	Parameters     []plan.Parameter      `json:"parameters,omitempty"`
	ReturnType     string                `json:"return_type,omitempty"`
	Returns        string                `json:"returns,omitempty"`
	Body           string                `json:"body,omitempty"`
	IsAsync        *bool                 `json:"is_async,omitempty"`
	Description    string                `json:"description,omitempty"`
	Location       *plan.Placement       `json:"location,omitempty"`
	Implementation *MethodImplementation `json:"implementation,omitempty"`
}

// Descriptor converts m into the plan's method descriptor.
func (m Method) Descriptor() plan.MethodDescriptor {
	d := plan.MethodDescriptor{
		Name:        m.Name,
		Parameters:  m.Parameters,
		ReturnType:  m.ReturnType,
		Returns:     m.Returns,
		Body:        m.Body,
		Description: m.Description,
	}
	if m.IsAsync != nil {
		d.IsAsync = *m.IsAsync
	}
	if d.Description == "" && m.Implementation != nil {
		d.Description = m.Implementation.Hint
	}
	return d
}

// RepositoryImplementation selects one repository implementation.
type RepositoryImplementation struct {
	Persistence string `json:"persistence,omitempty"`
	Database    string `json:"database,omitempty"`
}

// Details carries the nested payload used by scaffolding intents.
type Details struct {
	Description     string                     `json:"description,omitempty"`
	Properties      []plan.PropertyDescriptor  `json:"properties,omitempty"`
	Commands        []Method                   `json:"commands,omitempty"`
	Events          []any                      `json:"events,omitempty"`
	CustomMethods   []Method                   `json:"custom_methods,omitempty"`
	Implementations []RepositoryImplementation `json:"implementations,omitempty"`
}

// Intent is one granular modeling action.
//
// The same payload may appear at the top level or under details; the
// conventions pass folds top-level payload into Details so planners only
// read Details, Method, Property and Placement.
type Intent struct {
	Kind              Kind   `json:"intent"`
	BuildingBlockType string `json:"building_block_type,omitempty"`
	BuildingBlock     string `json:"building_block,omitempty"`
	Target            string `json:"target,omitempty"`

	Details Details `json:"details,omitzero"`

	Properties []plan.PropertyDescriptor `json:"properties,omitempty"`
	Methods    []Method                  `json:"methods,omitempty"`
	Method     *Method                   `json:"method,omitempty"`
	Property   *plan.PropertyDescriptor  `json:"property,omitempty"`
	Placement  *plan.Placement           `json:"placement,omitempty"`
	Hint       string                    `json:"hint,omitempty"`

	Implementations     []RepositoryImplementation `json:"implementations,omitempty"`
	CustomMethods       []Method                   `json:"custom_methods,omitempty"`
	PersistenceProvider string                     `json:"persistence_provider,omitempty"`
	DatabaseProvider    string                     `json:"database_provider,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// RevisionEntry is one submitted revision: the feedback and the intents
// and plan it was given against.
type RevisionEntry struct {
	Feedback string     `json:"feedback"`
	Intents  []Intent   `json:"intent"`
	Plan     plan.Steps `json:"plan"`
}

// FirstError returns the first error intent, if any.
func FirstError(intents []Intent) (Intent, bool) {
	for _, in := range intents {
		if in.Kind.Normalize() == Error {
			return in, true
		}
	}
	return Intent{}, false
}

// UnsupportedBlocks returns the sorted, de-duplicated building blocks of
// the unsupported intents.
func UnsupportedBlocks(intents []Intent) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, in := range intents {
		if in.Kind.Normalize() != Unsupported {
			continue
		}
		block := in.BuildingBlock
		if block == "" {
			block = in.BuildingBlockType
		}
		if block == "" {
			block = "unknown"
		}
		if _, ok := seen[block]; ok {
			continue
		}
		seen[block] = struct{}{}
		out = append(out, block)
	}
	slices.Sort(out)
	return out
}
