// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"fmt"
	"path"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
)

func missingTarget(in intent.Intent) bool {
	return strings.TrimSpace(in.Target) == ""
}

func noTargetWarning(in intent.Intent) string {
	return fmt.Sprintf("⚠️ Intent `%s` names no target. Skipping.", in.Kind.Normalize())
}

func planAggregate(ps *pass, in intent.Intent) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	name := in.Target
	target := ps.modelPath(name, name)

	ps.create(plan.CreateFile{
		Header:   plan.Header{FilePath: target, Summary: "Create aggregate root class for " + name},
		Template: TemplateAggregateRoot,
		Context: map[string]any{
			"aggregate_name": name,
			"namespace":      ps.modelNamespace(name),
			"description":    in.Details.Description,
			"properties":     nonNil(in.Details.Properties),
			"events":         nonNil(in.Details.Events),
			"commands":       nonNil(in.Details.Commands),
		},
	}, fmt.Sprintf("⚠️ `%s` aggregate already exists. Skipping creation.", name))
}

func planRemoveAggregate(ps *pass, in intent.Intent) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	name := in.Target
	target := ps.modelPath(name, name)

	removed := ps.remove(plan.DeleteFile{
		Header: plan.Header{FilePath: target, Summary: "Delete aggregate root class " + name},
	}, fmt.Sprintf("⚠️ Cannot delete `%s`: file does not exist at `%s`.", name, target))
	if removed {
		ps.dirOrders = append(ps.dirOrders, dirOrder{
			dir:         path.Dir(target),
			description: fmt.Sprintf("Delete empty model folder of %s", name),
		})
	}
}

func planAddAggregateProperty(ps *pass, in intent.Intent) {
	planAddProperty(ps, in, "aggregate")
}

func planAddValueObjectProperty(ps *pass, in intent.Intent) {
	planAddProperty(ps, in, "value object")
}

// planAddProperty emits one add_property step per described property.
func planAddProperty(ps *pass, in intent.Intent, noun string) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	name := in.Target
	target := ps.modelPath(name, name)

	props := in.Details.Properties
	if in.Property != nil {
		props = append([]plan.PropertyDescriptor{*in.Property}, props...)
	}
	if len(props) == 0 {
		ps.warn(fmt.Sprintf("⚠️ No property given for %s `%s`. Skipping.", noun, name))
		return
	}

	for _, prop := range props {
		ok := ps.modify(plan.ModifyFile{
			Header: plan.Header{
				FilePath: target,
				Summary:  fmt.Sprintf("Add property `%s` to %s `%s`", prop.Name, noun, name),
			},
			Modification: plan.AddProperty,
			Context: plan.ModifyContext{
				AggregateName: name,
				Namespace:     ps.modelNamespace(name),
				Property:      &prop,
				ReasoningHint: in.Hint,
			},
		}, notFoundWarning(noun, name, target))
		if !ok {
			return
		}
	}
}

func planAddAggregateMethod(ps *pass, in intent.Intent) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	name := in.Target
	target := ps.modelPath(name, name)

	methods := in.Details.Commands
	if in.Method != nil {
		methods = append([]intent.Method{*in.Method}, methods...)
	}
	if len(methods) == 0 {
		ps.warn(fmt.Sprintf("⚠️ No method given for aggregate `%s`. Skipping.", name))
		return
	}

	for _, m := range methods {
		desc := m.Descriptor()
		placement := in.Placement
		if m.Location != nil {
			placement = m.Location
		}
		hint := in.Hint
		if hint == "" && m.Implementation != nil {
			hint = m.Implementation.Hint
		}
		ok := ps.modify(plan.ModifyFile{
			Header: plan.Header{
				FilePath: target,
				Summary:  fmt.Sprintf("Add method `%s` to aggregate `%s`", m.Name, name),
			},
			Modification: plan.AddMethod,
			Context: plan.ModifyContext{
				AggregateName: name,
				Namespace:     ps.modelNamespace(name),
				Method:        &desc,
				Placement:     placement,
				ReasoningHint: hint,
			},
		}, notFoundWarning("aggregate", name, target))
		if !ok {
			return
		}
	}
}

func notFoundWarning(noun, name, target string) string {
	return fmt.Sprintf("⚠️ %s `%s` not found at expected path: %s", capitalize(noun), name, target)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func planValueObject(ps *pass, in intent.Intent) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	name := in.Target
	target := ps.modelPath(name, name)

	ps.create(plan.CreateFile{
		Header:   plan.Header{FilePath: target, Summary: "Create value object class for " + name},
		Template: TemplateValueObject,
		Context: map[string]any{
			"value_object_name": name,
			"namespace":         ps.modelNamespace(name),
			"description":       in.Details.Description,
			"properties":        nonNil(in.Details.Properties),
		},
	}, fmt.Sprintf("⚠️ `%s` value object already exists. Skipping creation.", name))
}

func planRemoveValueObject(ps *pass, in intent.Intent) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	name := in.Target
	target := ps.modelPath(name, name)

	ps.remove(plan.DeleteFile{
		Header: plan.Header{FilePath: target, Summary: "Delete value object class " + name},
	}, fmt.Sprintf("⚠️ Cannot delete `%s`: file does not exist at `%s`.", name, target))
}

// implementation is a resolved repository implementation target.
type implementation struct {
	className string
	path      string
	namespace string
	template  string
}

// resolveImplementation maps a persistence/database pair to its file and
// template. The boolean is false for unknown providers.
func (ps *pass) resolveImplementation(aggregate string, impl intent.RepositoryImplementation) (implementation, bool) {
	root := ps.md.RootNamespace
	infra := ps.md.InfrastructurePath

	switch strings.ToLower(impl.Persistence) {
	case strings.ToLower(intent.PersistenceEfCore):
		className := "EfCore" + aggregate + "Repository"
		return implementation{
			className: className,
			path:      path.Join(infra, "Repositories", "EfCore", className+".cs"),
			namespace: root + ".Infrastructure.Repositories.EfCore",
			template:  TemplateEfCoreRepository,
		}, true
	case strings.ToLower(intent.PersistenceOpenDDD):
		db := impl.Database
		className := db + "OpenDdd" + aggregate + "Repository"
		return implementation{
			className: className,
			path:      path.Join(infra, "Repositories", "OpenDdd", db, className+".cs"),
			namespace: root + ".Infrastructure.Repositories.OpenDdd." + db,
			template:  "repository/" + strings.ToLower(db) + "_openddd_repository_implementation",
		}, true
	default:
		return implementation{}, false
	}
}

// implementations applies provider defaults to the requested list.
func (ps *pass) implementations(in intent.Intent) []intent.RepositoryImplementation {
	requested := in.Details.Implementations
	if len(requested) == 0 {
		requested = []intent.RepositoryImplementation{{}}
	}
	out := make([]intent.RepositoryImplementation, 0, len(requested))
	for _, impl := range requested {
		if impl.Persistence == "" {
			impl.Persistence = ps.persist
		}
		if strings.EqualFold(impl.Persistence, intent.PersistenceOpenDDD) && impl.Database == "" {
			impl.Database = ps.database
		}
		out = append(out, impl)
	}
	return out
}

func planRepository(ps *pass, in intent.Intent) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	aggregate := in.Target
	interfaceName := "I" + aggregate + "Repository"
	interfacePath := ps.modelPath(aggregate, interfaceName)
	methods := nonNil(in.Details.CustomMethods)

	ps.create(plan.CreateFile{
		Header:   plan.Header{FilePath: interfacePath, Summary: fmt.Sprintf("Create %s interface", interfaceName)},
		Template: TemplateRepositoryInterface,
		Context: map[string]any{
			"aggregate_name": aggregate,
			"namespace":      ps.modelNamespace(aggregate),
			"custom_methods": methods,
		},
	}, fmt.Sprintf("⚠️ Repository interface for `%s` already exists at `%s`. Skipping interface creation.", aggregate, interfacePath))

	for _, impl := range ps.implementations(in) {
		resolved, ok := ps.resolveImplementation(aggregate, impl)
		if !ok {
			ps.warn(fmt.Sprintf("⚠️ Unsupported persistence provider `%s` for `%s` repository. Skipping implementation.", impl.Persistence, aggregate))
			continue
		}
		if ps.templateMissing(resolved.template) {
			ps.warn(fmt.Sprintf("⚠️ Unsupported database provider `%s` for `%s` repository. Skipping implementation.", impl.Database, aggregate))
			continue
		}
		ps.create(plan.CreateFile{
			Header: plan.Header{
				FilePath: resolved.path,
				Summary:  fmt.Sprintf("Create %s implementation of %s", resolved.className, interfaceName),
			},
			Template: resolved.template,
			Context: map[string]any{
				"aggregate_name":           aggregate,
				"domain_namespace":         ps.modelNamespace(aggregate),
				"implementation_namespace": resolved.namespace,
				"custom_methods":           methods,
			},
		}, fmt.Sprintf("⚠️ Repository implementation already exists at `%s`. Skipping `%s` creation.", resolved.path, resolved.className))
	}
}

// planRemoveRepository deletes the interface and every known
// implementation of it.
func planRemoveRepository(ps *pass, in intent.Intent) {
	if missingTarget(in) {
		ps.warn(noTargetWarning(in))
		return
	}
	aggregate := in.Target
	interfaceName := "I" + aggregate + "Repository"
	interfacePath := ps.modelPath(aggregate, interfaceName)

	ps.remove(plan.DeleteFile{
		Header: plan.Header{FilePath: interfacePath, Summary: "Delete repository interface " + interfaceName},
	}, fmt.Sprintf("⚠️ Cannot delete `%s`: file does not exist at `%s`.", interfaceName, interfacePath))

	candidates := []intent.RepositoryImplementation{
		{Persistence: intent.PersistenceEfCore},
		{Persistence: intent.PersistenceOpenDDD, Database: ps.database},
	}
	for _, impl := range candidates {
		resolved, _ := ps.resolveImplementation(aggregate, impl)
		if !ps.exists(resolved.path) {
			continue
		}
		ps.remove(plan.DeleteFile{
			Header: plan.Header{FilePath: resolved.path, Summary: "Delete repository implementation " + resolved.className},
		}, "")
	}
}

// nonNil turns a nil slice into an empty one so templates see a list.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
