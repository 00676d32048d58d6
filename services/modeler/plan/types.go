// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan defines the typed plan steps produced by the planner and
// consumed by the mutation engine.
//
// A plan is an ordered list of steps. Each step addresses exactly one path
// and carries a human-readable description. Steps form a closed set:
//
//	CreateFile      render a template into a new file
//	ModifyFile      add a method or property to an existing class
//	DeleteFile      remove a file (destructive)
//	DeleteDirectory remove a directory tree (destructive)
//
// The set is sealed by an unexported method on Step, so every switch over
// step variants can be checked for exhaustiveness in review.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Step Types
// =============================================================================

// StepType is the wire discriminator of a plan step.
type StepType string

const (
	// StepCreateFile renders a scaffold template into a new file.
	StepCreateFile StepType = "create_file"

	// StepModifyFile surgically edits an existing class.
	StepModifyFile StepType = "modify_file"

	// StepDeleteFile removes a single file.
	StepDeleteFile StepType = "delete_file"

	// StepDeleteDirectory removes a directory and everything under it.
	StepDeleteDirectory StepType = "delete_directory"
)

// String returns the wire name of the step type.
func (t StepType) String() string {
	return string(t)
}

// IsDestructive reports whether steps of this type remove project content.
//
// Destructive steps always require explicit human approval, regardless of
// the configured approval mode.
func (t StepType) IsDestructive() bool {
	return t == StepDeleteFile || t == StepDeleteDirectory
}

// Modification is the kind of edit a ModifyFile step performs.
type Modification string

const (
	// AddMethod inserts a method into the class body.
	AddMethod Modification = "add_method"

	// AddProperty inserts an auto-property at the top of the class body.
	AddProperty Modification = "add_property"
)

// Valid reports whether m is a known modification kind.
func (m Modification) Valid() bool {
	switch m {
	case AddMethod, AddProperty:
		return true
	default:
		return false
	}
}

// String returns the wire name of the modification.
func (m Modification) String() string {
	return string(m)
}

// Position says on which side of the reference member an insertion lands.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// =============================================================================
// Descriptors
// =============================================================================

// Parameter is one formal parameter of a method descriptor.
type Parameter struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"`
}

// MethodDescriptor describes a method to add to a class.
//
// ReturnType and Returns are both accepted on the wire; ReturnType wins
// when both are present.
type MethodDescriptor struct {
	Name        string      `json:"name" validate:"required"`
	Parameters  []Parameter `json:"parameters,omitempty" validate:"dive"`
	ReturnType  string      `json:"return_type,omitempty"`
	Returns     string      `json:"returns,omitempty"`
	Body        string      `json:"body,omitempty"`
	IsAsync     bool        `json:"is_async,omitempty"`
	Description string      `json:"description,omitempty"`
}

// Return returns the declared return type, defaulting to void.
func (m MethodDescriptor) Return() string {
	if rt := strings.TrimSpace(m.ReturnType); rt != "" {
		return rt
	}
	if rt := strings.TrimSpace(m.Returns); rt != "" {
		return rt
	}
	return "void"
}

// HasBody reports whether the descriptor carries an explicit body.
func (m MethodDescriptor) HasBody() bool {
	return strings.TrimSpace(m.Body) != ""
}

// ParameterList renders the parameters as "Type name, Type name".
func (m MethodDescriptor) ParameterList() string {
	parts := make([]string, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		parts = append(parts, p.Type+" "+p.Name)
	}
	return strings.Join(parts, ", ")
}

// PropertyDescriptor describes an auto-property to add to a class.
//
// Default is nil when no initializer should be emitted. On the wire the
// default may be a JSON string or any other literal; non-string literals
// are kept in their JSON spelling ("0", "true").
type PropertyDescriptor struct {
	Name    string  `json:"name" validate:"required"`
	Type    string  `json:"type" validate:"required"`
	Default *string `json:"default,omitempty"`
}

// UnmarshalJSON accepts string and non-string default literals.
func (p *PropertyDescriptor) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name    string          `json:"name"`
		Type    string          `json:"type"`
		Default json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Name = raw.Name
	p.Type = raw.Type
	p.Default = nil

	lit := strings.TrimSpace(string(raw.Default))
	switch {
	case lit == "" || lit == "null":
	case strings.HasPrefix(lit, `"`):
		var s string
		if err := json.Unmarshal(raw.Default, &s); err != nil {
			return fmt.Errorf("property %q default: %w", raw.Name, err)
		}
		p.Default = &s
	default:
		p.Default = &lit
	}
	return nil
}

// Placement anchors an insertion relative to a named existing member.
type Placement struct {
	Position  Position `json:"position,omitempty" validate:"omitempty,oneof=before after"`
	Reference string   `json:"reference,omitempty"`
}

// ModifyContext is the payload of a ModifyFile step.
type ModifyContext struct {
	AggregateName string              `json:"aggregate_name,omitempty"`
	Namespace     string              `json:"namespace,omitempty"`
	Method        *MethodDescriptor   `json:"method,omitempty"`
	Property      *PropertyDescriptor `json:"property,omitempty"`
	Placement     *Placement          `json:"placement,omitempty"`
	ReasoningHint string              `json:"reasoning_hint,omitempty"`
}

// AsMap exposes the context to template renderers.
func (c ModifyContext) AsMap() map[string]any {
	m := map[string]any{
		"aggregate_name": c.AggregateName,
		"namespace":      c.Namespace,
		"reasoning_hint": c.ReasoningHint,
	}
	if c.Method != nil {
		m["method"] = c.Method
	}
	if c.Property != nil {
		m["property"] = c.Property
	}
	if c.Placement != nil {
		m["placement"] = c.Placement
	}
	return m
}

// =============================================================================
// Steps
// =============================================================================

// Step is one atomic, path-addressable unit of proposed change.
type Step interface {
	// Type returns the wire discriminator.
	Type() StepType

	// Path returns the target path of the step.
	Path() string

	// Description returns a human-readable summary of the change.
	Description() string

	// IsDestructive reports whether the step removes project content.
	IsDestructive() bool

	isStep()
}

// Header carries the fields common to every step.
type Header struct {
	FilePath string `json:"path" validate:"required"`
	Summary  string `json:"description"`
}

// Path returns the target path.
func (h Header) Path() string { return h.FilePath }

// Description returns the human-readable summary.
func (h Header) Description() string { return h.Summary }

// CreateFile renders Template with Context into a new file at Path.
type CreateFile struct {
	Header
	Template string         `json:"template" validate:"required"`
	Context  map[string]any `json:"context,omitempty"`
}

func (CreateFile) Type() StepType      { return StepCreateFile }
func (CreateFile) IsDestructive() bool { return false }
func (CreateFile) isStep()             {}

// ModifyFile applies one modification to the class in the file at Path.
type ModifyFile struct {
	Header
	Modification Modification  `json:"modification" validate:"required"`
	Context      ModifyContext `json:"context"`
}

func (ModifyFile) Type() StepType      { return StepModifyFile }
func (ModifyFile) IsDestructive() bool { return false }
func (ModifyFile) isStep()             {}

// DeleteFile removes the file at Path.
type DeleteFile struct {
	Header
}

func (DeleteFile) Type() StepType      { return StepDeleteFile }
func (DeleteFile) IsDestructive() bool { return true }
func (DeleteFile) isStep()             {}

// DeleteDirectory removes the directory tree at Path.
type DeleteDirectory struct {
	Header
}

func (DeleteDirectory) Type() StepType      { return StepDeleteDirectory }
func (DeleteDirectory) IsDestructive() bool { return true }
func (DeleteDirectory) isStep()             {}

// Steps is an ordered plan.
type Steps []Step

// HasDestructive reports whether any step is destructive.
func (s Steps) HasDestructive() bool {
	for _, step := range s {
		if step.IsDestructive() {
			return true
		}
	}
	return false
}

// Deletions returns the destructive steps in plan order.
func (s Steps) Deletions() Steps {
	var out Steps
	for _, step := range s {
		if step.IsDestructive() {
			out = append(out, step)
		}
	}
	return out
}

// Describe renders one line per step, e.g. "create_file Foo.cs: Create Foo".
func (s Steps) Describe() string {
	var b strings.Builder
	for _, step := range s {
		fmt.Fprintf(&b, "%s %s", step.Type(), step.Path())
		if d := step.Description(); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
