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
	"regexp"
	"strings"
)

// fencePattern matches the first markdown code fence, with or without a
// json language tag.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON returns the JSON payload of a model response: the content of
// the first code fence when present, else the whole trimmed response.
func ExtractJSON(response string) string {
	if m := fencePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}

// ParseIntents decodes a model response into intents.
//
// # Description
//
// Accepts a JSON array of intent objects or a single intent object,
// optionally wrapped in a markdown code fence.
//
// # Outputs
//
//   - []Intent: Decoded intents in response order.
//   - error: Wraps ErrMalformedResponse when no intent JSON can be read.
func ParseIntents(response string) ([]Intent, error) {
	payload := ExtractJSON(response)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	switch payload[0] {
	case '[':
		var intents []Intent
		if err := json.Unmarshal([]byte(payload), &intents); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return intents, nil
	case '{':
		var in Intent
		if err := json.Unmarshal([]byte(payload), &in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return []Intent{in}, nil
	default:
		return nil, fmt.Errorf("%w: expected a JSON object or array", ErrMalformedResponse)
	}
}
