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
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
	"github.com/AleutianAI/AleutianModeler/services/modeler/project"
)

const (
	customerPath  = "src/Shop/Domain/Model/Customer/Customer.cs"
	customerRepo  = "src/Shop/Domain/Model/Customer/ICustomerRepository.cs"
	customerDir   = "src/Shop/Domain/Model/Customer"
	invoicePath   = "src/Shop/Domain/Model/Invoice/Invoice.cs"
	postgresCusto = "src/Shop/Infrastructure/Repositories/OpenDdd/Postgres/PostgresOpenDddCustomerRepository.cs"
	efCoreCusto   = "src/Shop/Infrastructure/Repositories/EfCore/EfCoreCustomerRepository.cs"
)

func shopMetadata() project.Metadata {
	return project.Metadata{
		ProjectName:        "Shop",
		RootNamespace:      "Shop",
		ProjectRoot:        "/work/shop",
		SourcePath:         "src",
		DomainPath:         "src/Shop/Domain",
		ApplicationPath:    "src/Shop/Application",
		InfrastructurePath: "src/Shop/Infrastructure",
	}
}

func knownSet(paths ...string) map[string]struct{} {
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}
	return known
}

func intents(t *testing.T, raw string) []intent.Intent {
	t.Helper()
	var out []intent.Intent
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func stepPaths(steps plan.Steps) []string {
	paths := make([]string, 0, len(steps))
	for _, s := range steps {
		paths = append(paths, string(s.Type())+" "+s.Path())
	}
	return paths
}

func TestPlan_AddAggregate(t *testing.T) {
	res := New().Plan(intents(t, `[{
		"intent": "add_aggregate", "target": "Invoice",
		"details": {"description": "A bill", "properties": [{"name": "Total", "type": "decimal"}],
		            "commands": [{"name": "Pay"}]}
	}]`), shopMetadata(), knownSet())

	require.Empty(t, res.Warnings)
	require.Len(t, res.Steps, 1)
	create, ok := res.Steps[0].(plan.CreateFile)
	require.True(t, ok)
	assert.Equal(t, invoicePath, create.Path())
	assert.Equal(t, TemplateAggregateRoot, create.Template)
	assert.Equal(t, "Shop.Domain.Model.Invoice", create.Context["namespace"])
	assert.Equal(t, "Invoice", create.Context["aggregate_name"])
	assert.Equal(t, "A bill", create.Context["description"])
	assert.Len(t, create.Context["properties"], 1)
	assert.Len(t, create.Context["commands"], 1)
}

func TestPlan_ExistingPathGuard(t *testing.T) {
	res := New().Plan(intents(t, `[{"intent": "add_aggregate", "target": "Customer"}]`),
		shopMetadata(), knownSet(customerPath))

	assert.Empty(t, res.Steps)
	assert.Equal(t, []string{"⚠️ `Customer` aggregate already exists. Skipping creation."}, res.Warnings)
}

func TestPlan_ExistingPathGuardAbsolute(t *testing.T) {
	abs := filepath.Join("/work/shop", filepath.FromSlash(customerPath))
	res := New().Plan(intents(t, `[{"intent": "add_aggregate", "target": "Customer"}]`),
		shopMetadata(), knownSet(abs))

	assert.Empty(t, res.Steps)
	assert.Len(t, res.Warnings, 1)
}

func TestPlan_AddRepositoryDefaults(t *testing.T) {
	res := New().Plan(intents(t, `[
		{"intent": "add_aggregate", "target": "Customer"},
		{"intent": "add_repository", "target": "Customer",
		 "details": {"custom_methods": [{"name": "GetByEmail", "parameters": [{"name": "email", "type": "string"}]}]}}
	]`), shopMetadata(), knownSet())

	require.Empty(t, res.Warnings)
	assert.Equal(t, []string{
		"create_file " + customerPath,
		"create_file " + customerRepo,
		"create_file " + postgresCusto,
	}, stepPaths(res.Steps))

	aggregate := res.Steps[0].(plan.CreateFile)
	props, ok := aggregate.Context["properties"].([]plan.PropertyDescriptor)
	require.True(t, ok)
	assert.Equal(t, []plan.PropertyDescriptor{{Name: "Email", Type: "string"}}, props, "query property inferred")

	iface := res.Steps[1].(plan.CreateFile)
	assert.Equal(t, TemplateRepositoryInterface, iface.Template)
	methods, ok := iface.Context["custom_methods"].([]intent.Method)
	require.True(t, ok)
	require.Len(t, methods, 1)
	assert.Equal(t, "GetByEmailAsync", methods[0].Name)

	impl := res.Steps[2].(plan.CreateFile)
	assert.Equal(t, TemplatePostgresOpenDDD, impl.Template)
	assert.Equal(t, "Shop.Infrastructure.Repositories.OpenDdd.Postgres", impl.Context["implementation_namespace"])
	assert.Equal(t, "Shop.Domain.Model.Customer", impl.Context["domain_namespace"])
}

func TestPlan_AddRepositoryProviders(t *testing.T) {
	md := shopMetadata()
	md.PersistenceProvider = "EfCore"

	res := New().Plan(intents(t, `[{"intent": "add_repository", "target": "Customer",
		"details": {"implementations": [
			{},
			{"persistence": "OpenDdd", "database": "MySql"},
			{"persistence": "Mongo"}
		]}}]`), md, knownSet(customerRepo))

	assert.Equal(t, []string{"create_file " + efCoreCusto}, stepPaths(res.Steps))
	assert.Equal(t, []string{
		"⚠️ Repository interface for `Customer` already exists at `" + customerRepo + "`. Skipping interface creation.",
		"⚠️ Unsupported database provider `MySql` for `Customer` repository. Skipping implementation.",
		"⚠️ Unsupported persistence provider `Mongo` for `Customer` repository. Skipping implementation.",
	}, res.Warnings)
}

func TestPlan_AddRepositoryImplementationExists(t *testing.T) {
	res := New().Plan(intents(t, `[{"intent": "add_repository", "target": "Customer"}]`),
		shopMetadata(), knownSet(postgresCusto))

	assert.Equal(t, []string{"create_file " + customerRepo}, stepPaths(res.Steps))
	assert.Equal(t, []string{
		"⚠️ Repository implementation already exists at `" + postgresCusto + "`. Skipping `PostgresOpenDddCustomerRepository` creation.",
	}, res.Warnings)
}

func TestPlan_AddAggregateMethod(t *testing.T) {
	res := New().Plan(intents(t, `[
		{"intent": "add_aggregate_method", "target": "Customer", "hint": "sum the lines",
		 "method": {"name": "CalculateBalance", "returns": "decimal",
		            "location": {"position": "after", "reference": "RegisterPayment"}}},
		{"intent": "add_aggregate_method", "target": "Order", "method": {"name": "Ship"}}
	]`), shopMetadata(), knownSet(customerPath))

	require.Len(t, res.Steps, 1)
	modify, ok := res.Steps[0].(plan.ModifyFile)
	require.True(t, ok)
	assert.Equal(t, customerPath, modify.Path())
	assert.Equal(t, plan.AddMethod, modify.Modification)
	assert.Equal(t, "Add method `CalculateBalance` to aggregate `Customer`", modify.Description())
	require.NotNil(t, modify.Context.Method)
	assert.Equal(t, "decimal", modify.Context.Method.Return())
	require.NotNil(t, modify.Context.Placement)
	assert.Equal(t, plan.Placement{Position: plan.PositionAfter, Reference: "RegisterPayment"}, *modify.Context.Placement)
	assert.Equal(t, "sum the lines", modify.Context.ReasoningHint)
	assert.Equal(t, "Shop.Domain.Model.Customer", modify.Context.Namespace)

	assert.Equal(t, []string{
		"⚠️ Aggregate `Order` not found at expected path: src/Shop/Domain/Model/Order/Order.cs",
	}, res.Warnings)
}

func TestPlan_ModifyAfterCreateInSamePlan(t *testing.T) {
	res := New().Plan(intents(t, `[
		{"intent": "add_aggregate", "target": "Invoice"},
		{"intent": "add_aggregate_property", "target": "Invoice",
		 "property": {"name": "Number", "type": "string", "default": ""}},
		{"intent": "add_aggregate", "target": "Invoice"}
	]`), shopMetadata(), knownSet())

	assert.Equal(t, []string{"create_file " + invoicePath, "modify_file " + invoicePath}, stepPaths(res.Steps))
	assert.Equal(t, []string{"⚠️ `Invoice` aggregate already exists. Skipping creation."}, res.Warnings)

	modify := res.Steps[1].(plan.ModifyFile)
	require.NotNil(t, modify.Context.Property)
	require.NotNil(t, modify.Context.Property.Default)
	assert.Equal(t, "", *modify.Context.Property.Default)
}

func TestPlan_ValueObject(t *testing.T) {
	res := New().Plan(intents(t, `[
		{"intent": "add_value_object", "target": "Money",
		 "details": {"properties": [{"name": "Amount", "type": "decimal"}]}},
		{"intent": "add_value_object_property", "target": "Money",
		 "properties": [{"name": "Currency", "type": "string"}]},
		{"intent": "add_value_object_property", "target": "Address", "property": {"name": "Street", "type": "string"}},
		{"intent": "remove_value_object", "target": "Colour"}
	]`), shopMetadata(), knownSet())

	moneyPath := "src/Shop/Domain/Model/Money/Money.cs"
	assert.Equal(t, []string{"create_file " + moneyPath, "modify_file " + moneyPath}, stepPaths(res.Steps))
	create := res.Steps[0].(plan.CreateFile)
	assert.Equal(t, TemplateValueObject, create.Template)
	assert.Equal(t, "Money", create.Context["value_object_name"])

	assert.Equal(t, []string{
		"⚠️ Value object `Address` not found at expected path: src/Shop/Domain/Model/Address/Address.cs",
		"⚠️ Cannot delete `Colour`: file does not exist at `src/Shop/Domain/Model/Colour/Colour.cs`.",
	}, res.Warnings)
}

func TestPlan_RemoveAggregate(t *testing.T) {
	t.Run("lone file removes folder", func(t *testing.T) {
		res := New().Plan(intents(t, `[{"intent": "remove_aggregate", "target": "Customer"}]`),
			shopMetadata(), knownSet(customerPath))

		assert.Equal(t, []string{"delete_file " + customerPath, "delete_directory " + customerDir}, stepPaths(res.Steps))
		assert.True(t, res.Steps.HasDestructive())
		assert.Empty(t, res.Warnings)
	})

	t.Run("folder with other files is kept", func(t *testing.T) {
		res := New().Plan(intents(t, `[{"intent": "remove_aggregate", "target": "Customer"}]`),
			shopMetadata(), knownSet(customerPath, customerRepo))

		assert.Equal(t, []string{"delete_file " + customerPath}, stepPaths(res.Steps))
	})

	t.Run("folder emptied by repository removal", func(t *testing.T) {
		res := New().Plan(intents(t, `[
			{"intent": "remove_aggregate", "target": "Customer"},
			{"intent": "remove_repository", "target": "Customer"}
		]`), shopMetadata(), knownSet(customerPath, customerRepo, postgresCusto))

		assert.Equal(t, []string{
			"delete_file " + customerPath,
			"delete_file " + customerRepo,
			"delete_file " + postgresCusto,
			"delete_directory " + customerDir,
		}, stepPaths(res.Steps))
	})

	t.Run("missing file", func(t *testing.T) {
		res := New().Plan(intents(t, `[{"intent": "remove_aggregate", "target": "Customer"}]`),
			shopMetadata(), knownSet())

		assert.Empty(t, res.Steps)
		assert.Equal(t, []string{
			"⚠️ Cannot delete `Customer`: file does not exist at `" + customerPath + "`.",
		}, res.Warnings)
	})
}

func TestPlan_UnsupportedKindsWarnOnce(t *testing.T) {
	in := intents(t, `[
		{"intent": "rename_aggregate", "target": "Customer"},
		{"intent": "add_aggregate", "target": "Invoice"},
		{"intent": "remove_aggregate_property", "target": "Customer"},
		{"intent": "add_aggregate"}
	]`)
	snapshot, err := json.Marshal(in)
	require.NoError(t, err)

	res := New().Plan(in, shopMetadata(), knownSet())

	assert.Equal(t, []string{"create_file " + invoicePath}, stepPaths(res.Steps))
	assert.Equal(t, []string{
		"⚠️ Intent `rename_aggregate` for `Customer` is not supported. Skipping.",
		"⚠️ Intent `remove_aggregate_property` for `Customer` is not supported. Skipping.",
		"⚠️ Intent `add_aggregate` names no target. Skipping.",
	}, res.Warnings)

	after, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(snapshot), string(after), "input not modified")
}

type templateSet map[string]bool

func (ts templateSet) Has(id string) bool { return ts[id] }

func TestPlan_WithTemplates(t *testing.T) {
	p := New(WithTemplates(templateSet{
		TemplateRepositoryInterface:                          true,
		"repository/mysql_openddd_repository_implementation": true,
	}))

	md := shopMetadata()
	md.DatabaseProvider = "MySql"
	res := p.Plan(intents(t, `[
		{"intent": "add_repository", "target": "Customer"},
		{"intent": "add_aggregate", "target": "Customer"}
	]`), md, knownSet())

	assert.Equal(t, []string{
		"create_file " + customerRepo,
		"create_file src/Shop/Infrastructure/Repositories/OpenDdd/MySql/MySqlOpenDddCustomerRepository.cs",
	}, stepPaths(res.Steps))
	assert.Equal(t, []string{
		"⚠️ No template `aggregate_root` is available. Skipping `" + customerPath + "`.",
	}, res.Warnings)
}
