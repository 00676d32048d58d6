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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
)

func decodeIntents(t *testing.T, raw string) []Intent {
	t.Helper()
	var intents []Intent
	require.NoError(t, json.Unmarshal([]byte(raw), &intents))
	return intents
}

func TestEnforceConventions_Repository(t *testing.T) {
	in := decodeIntents(t, `[{
		"intent": " Add_Repository ",
		"target": "Customer",
		"details": {"custom_methods": [
			{"name": "GetByEmail", "parameters": [{"name": "email", "type": "string"}]},
			{"name": "ListActiveAsync", "is_async": false}
		]}
	}]`)

	out := EnforceConventions(in)
	require.Len(t, out, 1)
	assert.Equal(t, AddRepository, out[0].Kind)

	methods := out[0].Details.CustomMethods
	require.Len(t, methods, 2)
	assert.Equal(t, "GetByEmailAsync", methods[0].Name)
	require.NotNil(t, methods[0].IsAsync)
	assert.True(t, *methods[0].IsAsync)

	assert.Equal(t, "ListActiveAsync", methods[1].Name)
	require.NotNil(t, methods[1].IsAsync)
	assert.False(t, *methods[1].IsAsync, "explicit false is kept")
	assert.NotNil(t, methods[1].Parameters)
	assert.Empty(t, methods[1].Parameters)

	assert.Equal(t, "GetByEmail", in[0].Details.CustomMethods[0].Name, "input not modified")
	assert.Nil(t, in[0].Details.CustomMethods[0].IsAsync)
}

func TestEnforceConventions_FoldsTopLevelPayload(t *testing.T) {
	in := decodeIntents(t, `[
		{"intent": "add_aggregate", "target": "Person",
		 "properties": [{"name": "Name", "type": "string"}],
		 "methods": [{"name": "Rename"}]},
		{"intent": "add_repository", "target": "Person",
		 "persistence_provider": "EfCore",
		 "custom_methods": [{"name": "FindByName"}]},
		{"intent": "add_aggregate_method", "target": "Person",
		 "method": {"name": "Deactivate", "location": {"position": "before", "reference": "Rename"}}}
	]`)

	out := EnforceConventions(in)
	require.Len(t, out, 3)

	assert.Equal(t, []plan.PropertyDescriptor{{Name: "Name", Type: "string"}}, out[0].Details.Properties)
	require.Len(t, out[0].Details.Commands, 1)
	assert.Equal(t, "Rename", out[0].Details.Commands[0].Name)
	assert.Nil(t, out[0].Properties)

	assert.Equal(t, []RepositoryImplementation{{Persistence: "EfCore"}}, out[1].Details.Implementations)
	require.Len(t, out[1].Details.CustomMethods, 1)
	assert.Equal(t, "FindByNameAsync", out[1].Details.CustomMethods[0].Name)

	require.NotNil(t, out[2].Placement)
	assert.Equal(t, plan.Placement{Position: plan.PositionBefore, Reference: "Rename"}, *out[2].Placement)
}

func TestIntegrate_InfersPropertiesFromQueries(t *testing.T) {
	in := EnforceConventions(decodeIntents(t, `[
		{"intent": "add_aggregate", "target": "Customer",
		 "details": {"properties": [{"name": "Name", "type": "string"}]}},
		{"intent": "add_repository", "target": "Customer",
		 "details": {"custom_methods": [
			{"name": "GetByEmail", "parameters": [{"name": "email", "type": "EmailAddress"}]},
			{"name": "FindByEmail"},
			{"name": "FindWithFavouriteColor"},
			{"name": "GetByName"},
			{"name": "CountActive"},
			{"name": "FindBy"}
		 ]}},
		{"intent": "add_repository", "target": "Order",
		 "details": {"custom_methods": [{"name": "GetByNumber"}]}}
	]`))

	out := Integrate(in)
	assert.Equal(t, []plan.PropertyDescriptor{
		{Name: "Name", Type: "string"},
		{Name: "Email", Type: "EmailAddress"},
		{Name: "FavouriteColor", Type: "string"},
	}, out[0].Details.Properties)

	assert.Len(t, in[0].Details.Properties, 1, "input not modified")
}

func TestIntegrate_NoMatchingAggregate(t *testing.T) {
	in := EnforceConventions(decodeIntents(t, `[
		{"intent": "add_repository", "target": "Order",
		 "details": {"custom_methods": [{"name": "GetByNumber"}]}}
	]`))
	out := Integrate(in)
	assert.Equal(t, in, out)
}

func TestPascalCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"nickname", "Nickname"},
		{"favouriteColor", "FavouriteColor"},
		{"FavouriteColor", "FavouriteColor"},
		{"first_name", "FirstName"},
		{"HTMLParser", "HtmlParser"},
		{"EMAIL", "Email"},
		{"userID", "UserId"},
		{"ABc", "ABc"},
		{"v2Name", "VName"},
		{"123", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PascalCase(tt.in))
		})
	}
}

func TestKind(t *testing.T) {
	assert.True(t, AddAggregate.IsActionable())
	assert.True(t, Kind("rename_everything").IsActionable())
	for _, k := range []Kind{"", " ", Unsure, Unclear, None, Greeting, Error, Unsupported, "GREETING"} {
		assert.False(t, k.IsActionable(), "kind %q", k)
	}
}

func TestUnsupportedBlocks(t *testing.T) {
	got := UnsupportedBlocks([]Intent{
		{Kind: Unsupported, BuildingBlock: "saga"},
		{Kind: AddAggregate},
		{Kind: "Unsupported", BuildingBlockType: "domain_service"},
		{Kind: Unsupported, BuildingBlock: "saga"},
		{Kind: Unsupported},
	})
	assert.Equal(t, []string{"domain_service", "saga", "unknown"}, got)
}
