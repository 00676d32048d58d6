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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
)

func newRenderer(t *testing.T, opts ...Option) *TemplateRenderer {
	t.Helper()
	r, err := NewTemplateRenderer(opts...)
	if err != nil {
		t.Fatalf("NewTemplateRenderer: %v", err)
	}
	return r
}

func assertParses(t *testing.T, src string) {
	t.Helper()
	tree, err := syntax.NewIndex().ParseString(context.Background(), src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tree.HasErrors() {
		t.Errorf("rendered source has syntax errors:\n%s", src)
	}
	if _, ok := tree.Class(); !ok {
		t.Errorf("rendered source has no class:\n%s", src)
	}
}

func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n--- output ---\n%s", want, got)
		}
	}
}

func TestNewTemplateRenderer_EmbeddedIDs(t *testing.T) {
	r := newRenderer(t)

	for _, id := range []string{
		"aggregate_root",
		"aggregate_method",
		"value_object",
		"repository/repository_interface",
		"repository/efcore_repository_implementation",
		"repository/postgres_openddd_repository_implementation",
	} {
		if !r.Has(id) {
			t.Errorf("missing embedded template %q (have %v)", id, r.IDs())
		}
	}
}

func TestRender_AggregateRoot(t *testing.T) {
	r := newRenderer(t)

	got, err := r.Render(context.Background(), "aggregate_root", map[string]any{
		"aggregate_name": "Customer",
		"namespace":      "Bookstore.Domain.Model.Customer",
		"description":    "A person who\nbuys books.",
		"properties": []map[string]any{
			{"name": "name", "type": "string"},
			{"name": "Email", "type": "string"},
		},
		"commands": []any{"changeEmail"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	assertContains(t, got,
		"namespace Bookstore.Domain.Model.Customer",
		"// A person who buys books.",
		"public class Customer : AggregateRootBase<Guid>",
		"public string Name { get; private set; }",
		"public string Email { get; private set; }",
		"private Customer(Guid id, string name, string email) : base(id)",
		"public static Customer Create(string name, string email)",
		"return new Customer(Guid.NewGuid(), name, email);",
		"public void ChangeEmail()",
	)
	if !strings.HasSuffix(got, "}\n") {
		t.Errorf("output should end with a single newline after the closing brace")
	}
	assertParses(t, got)
}

func TestRender_RepositoryTemplates(t *testing.T) {
	r := newRenderer(t)
	methods := []any{
		map[string]any{
			"name":        "GetByEmailAsync",
			"is_async":    true,
			"return_type": "Customer",
			"parameters":  []any{map[string]any{"name": "email", "type": "string"}},
		},
	}

	tests := []struct {
		id    string
		data  map[string]any
		wants []string
	}{
		{
			id: "repository/repository_interface",
			data: map[string]any{
				"aggregate_name": "Customer",
				"namespace":      "Bookstore.Domain.Model.Customer",
				"custom_methods": methods,
			},
			wants: []string{
				"public interface ICustomerRepository : IRepository<Customer, Guid>",
				"Task<Customer> GetByEmailAsync(string email, CancellationToken ct);",
			},
		},
		{
			id: "repository/efcore_repository_implementation",
			data: map[string]any{
				"aggregate_name":           "Customer",
				"domain_namespace":         "Bookstore.Domain.Model.Customer",
				"implementation_namespace": "Bookstore.Infrastructure.Repositories.EfCore",
				"custom_methods":           methods,
			},
			wants: []string{
				"using Bookstore.Domain.Model.Customer;",
				"public class EfCoreCustomerRepository : EfCoreRepository<Customer, Guid>, ICustomerRepository",
				"public Task<Customer> GetByEmailAsync(string email, CancellationToken ct)",
			},
		},
		{
			id: "repository/postgres_openddd_repository_implementation",
			data: map[string]any{
				"aggregate_name":           "Customer",
				"domain_namespace":         "Bookstore.Domain.Model.Customer",
				"implementation_namespace": "Bookstore.Infrastructure.Repositories.OpenDdd.Postgres",
			},
			wants: []string{
				"namespace Bookstore.Infrastructure.Repositories.OpenDdd.Postgres",
				"public class PostgresOpenDddCustomerRepository : PostgresOpenDddRepository<Customer, Guid>, ICustomerRepository",
				": base(session, serializer)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := r.Render(context.Background(), tt.id, tt.data)
			if err != nil {
				t.Fatalf("Render(%s): %v", tt.id, err)
			}
			assertContains(t, got, tt.wants...)
			assertParses(t, got)
		})
	}
}

func TestRender_AggregateMethodFromTypedContext(t *testing.T) {
	r := newRenderer(t)

	ctxMap := plan.ModifyContext{
		AggregateName: "Invoice",
		Method: &plan.MethodDescriptor{
			Name:        "CalculateBalance",
			ReturnType:  "decimal",
			Description: "Sum of open lines.",
			Parameters:  []plan.Parameter{{Name: "AsOf", Type: "DateTime"}},
		},
	}.AsMap()

	got, err := r.Render(context.Background(), "aggregate_method", ctxMap)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := "/// <summary>\n/// Sum of open lines.\n/// </summary>\n" +
		"public decimal CalculateBalance(DateTime asOf)\n{\n    throw new NotImplementedException();\n}\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_Errors(t *testing.T) {
	r := newRenderer(t)

	t.Run("unknown template", func(t *testing.T) {
		_, err := r.Render(context.Background(), "nonexistent", nil)
		if !errors.Is(err, ErrTemplateNotFound) {
			t.Fatalf("expected ErrTemplateNotFound, got %v", err)
		}
	})

	t.Run("missing required key", func(t *testing.T) {
		_, err := r.Render(context.Background(), "aggregate_root", map[string]any{"namespace": "A"})
		if !errors.Is(err, ErrRender) {
			t.Fatalf("expected ErrRender, got %v", err)
		}
	})

	t.Run("unencodable context", func(t *testing.T) {
		_, err := r.Render(context.Background(), "aggregate_root", map[string]any{"bad": make(chan int)})
		if !errors.Is(err, ErrRender) {
			t.Fatalf("expected ErrRender, got %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := r.Render(ctx, "aggregate_root", nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestRender_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	body := "public {{returns .method}} {{name .method}}() { }\n"
	if err := os.WriteFile(filepath.Join(dir, "aggregate_method.cs.tmpl"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newRenderer(t, WithOverrideDir(dir), WithOverrideDir(dir))
	got, err := r.Render(context.Background(), "aggregate_method", map[string]any{
		"method": map[string]any{"name": "Ping"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "public void Ping() { }\n" {
		t.Errorf("override not used, got %q", got)
	}

	if !newRenderer(t, WithOverrideDir(filepath.Join(dir, "missing"))).Has("aggregate_root") {
		t.Error("missing override dir should fall back to embedded templates")
	}
}

func TestFuncs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"returns default", returns(map[string]any{}), "void"},
		{"returns explicit", returns(map[string]any{"returns": "int"}), "int"},
		{"return_type wins", returns(map[string]any{"returns": "int", "return_type": "long"}), "long"},
		{"async void", returns(map[string]any{"is_async": true}), "Task"},
		{"async value", returns(map[string]any{"is_async": true, "return_type": "int"}), "Task<int>"},
		{"async task kept", returns(map[string]any{"is_async": true, "return_type": "Task<int>"}), "Task<int>"},
		{"signature async no params", signature(map[string]any{"is_async": true}), "CancellationToken ct"},
		{"typeOf default", typeOf(map[string]any{"name": "x"}), "string"},
		{"name of string", name("Foo"), "Foo"},
		{"pascal", Pascal("email"), "Email"},
		{"camel", Camel("Email"), "email"},
		{"camel empty", Camel(""), ""},
		{"oneline", oneline(" a \n b\tc "), "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
