// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON adds the type discriminator.
func (c CreateFile) MarshalJSON() ([]byte, error) {
	type alias CreateFile
	return json.Marshal(struct {
		Type StepType `json:"type"`
		alias
	}{StepCreateFile, alias(c)})
}

// MarshalJSON adds the type discriminator.
func (m ModifyFile) MarshalJSON() ([]byte, error) {
	type alias ModifyFile
	return json.Marshal(struct {
		Type StepType `json:"type"`
		alias
	}{StepModifyFile, alias(m)})
}

// MarshalJSON adds the type discriminator.
func (d DeleteFile) MarshalJSON() ([]byte, error) {
	type alias DeleteFile
	return json.Marshal(struct {
		Type StepType `json:"type"`
		alias
	}{StepDeleteFile, alias(d)})
}

// MarshalJSON adds the type discriminator.
func (d DeleteDirectory) MarshalJSON() ([]byte, error) {
	type alias DeleteDirectory
	return json.Marshal(struct {
		Type StepType `json:"type"`
		alias
	}{StepDeleteDirectory, alias(d)})
}

// UnmarshalStep decodes one step by its "type" discriminator.
//
// # Outputs
//
//   - Step: The concrete variant.
//   - error: ErrUnknownStepType for an unrecognised discriminator, or the
//     JSON decoding error.
func UnmarshalStep(data []byte) (Step, error) {
	var env struct {
		Type StepType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode step envelope: %w", err)
	}

	switch env.Type {
	case StepCreateFile:
		var s CreateFile
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return s, nil
	case StepModifyFile:
		var s ModifyFile
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return s, nil
	case StepDeleteFile:
		var s DeleteFile
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return s, nil
	case StepDeleteDirectory:
		var s DeleteDirectory
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, env.Type)
	}
}

// UnmarshalJSON decodes a JSON array of steps.
func (s *Steps) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode steps: %w", err)
	}

	out := make(Steps, 0, len(raws))
	for i, raw := range raws {
		step, err := UnmarshalStep(raw)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		out = append(out, step)
	}
	*s = out
	return nil
}
