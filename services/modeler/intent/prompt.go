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
	"fmt"
	"strings"
)

const examples = `[
  {"intent": "add_aggregate", "target": "Person",
   "properties": [{"name": "Name", "type": "string"}],
   "methods": [{"name": "Rename", "parameters": [{"name": "newName", "type": "string"}]}]},
  {"intent": "add_aggregate_method", "target": "Person",
   "method": {"name": "Deactivate", "parameters": [], "return_type": "void"},
   "placement": {"position": "after", "reference": "Activate"}},
  {"intent": "add_aggregate_property", "target": "Person",
   "property": {"name": "Age", "type": "int"}},
  {"intent": "add_value_object", "target": "Address",
   "properties": [{"name": "Street", "type": "string"}]},
  {"intent": "add_repository", "target": "Person",
   "custom_methods": [{"name": "GetByEmail", "parameters": [{"name": "email", "type": "string"}], "return_type": "Person"}],
   "implementations": [{"persistence": "OpenDDD", "database": "Postgres"}]},
  {"intent": "remove_aggregate", "target": "Person"}
]`

// DistillPrompt builds the prompt that turns a request into intents.
func DistillPrompt(req DistillRequest) string {
	var b strings.Builder
	b.WriteString("You are a modeling assistant for a Domain-Driven Design codebase built with OpenDDD.NET.\n\n")

	if s := strings.TrimSpace(req.Summary); s != "" {
		b.WriteString("### Context\n\nPrevious modeling session summary:\n\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	if len(req.Recent) > 0 {
		b.WriteString("Recent conversation:\n\n")
		for _, turn := range req.Recent {
			b.WriteString(turn)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "The user has written the following instruction:\n\n\"%s\"\n\n", strings.TrimSpace(req.UserInput))
	b.WriteString("Extract the modeling intents from this instruction. You may only use these intents:\n\n")
	for _, k := range ModelingKinds() {
		fmt.Fprintf(&b, "- %s\n", k)
	}
	fmt.Fprintf(&b, "\nRepository persistence providers: %s, %s. Database providers: %s.\n\n",
		PersistenceOpenDDD, PersistenceEfCore, DatabasePostgres)

	b.WriteString(`### Instructions

- Return one JSON object per granular modeling action, as a JSON array.
- Only include methods, properties or parameters the user describes.
- Use empty arrays for optional fields the user did not specify.
- If the request targets a building block that is not supported, return {"intent": "unsupported", "building_block": "<name>"}.
- Return valid JSON only, without comments or explanations.

### Examples

`)
	b.WriteString(examples)
	b.WriteString("\n\nIf the intent is unclear, respond only with [{\"intent\": \"unsure\"}].\n")
	return b.String()
}

// RevisePrompt builds the prompt that re-derives intents from feedback.
//
// Prior revisions are listed oldest first, followed by the current plan
// and the feedback on it.
func RevisePrompt(req ReviseRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user originally asked:\n\n\"%s\"\n", strings.TrimSpace(req.UserInput))

	for i, rev := range req.Prior {
		fmt.Fprintf(&b, "\n### Revision %d\n\nThe assistant previously proposed these intents and plan:\n\n", i+1)
		writeJSON(&b, rev.Intents)
		writeJSON(&b, rev.Plan)
		fmt.Fprintf(&b, "The user responded:\n\n\"%s\"\n", rev.Feedback)
	}

	b.WriteString("\n### Current Plan\n\nThe assistant now proposed:\n\n")
	writeJSON(&b, req.Current.Plan)
	fmt.Fprintf(&b, "The user wants to revise it with the following feedback:\n\n\"%s\"\n\n", req.Current.Feedback)
	b.WriteString("Revise the modeling intents accordingly and return them as a JSON array.")

	return DistillPrompt(DistillRequest{UserInput: b.String(), Summary: req.Summary})
}

func writeJSON(b *strings.Builder, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte("null")
	}
	b.WriteString("```json\n")
	b.Write(data)
	b.WriteString("\n```\n\n")
}
