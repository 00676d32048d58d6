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
	"fmt"

	"github.com/go-playground/validator/v10"
)

// stepValidate is the validator instance for plan steps.
var stepValidate = validator.New()

// Validate checks the structural fields of a step.
//
// # Description
//
// Validates struct tags (required path, template id, descriptor names).
// Semantic checks such as rejecting an unknown modification kind belong to
// the mutation engine, which reports them per file.
//
// # Outputs
//
//   - error: Wraps ErrInvalidStep, nil when the step is well formed.
func Validate(s Step) error {
	if s == nil {
		return fmt.Errorf("%w: nil step", ErrInvalidStep)
	}

	var err error
	switch v := s.(type) {
	case CreateFile:
		err = stepValidate.Struct(v)
	case ModifyFile:
		err = stepValidate.Struct(v)
		if err == nil && v.Context.Method != nil {
			err = stepValidate.Struct(v.Context.Method)
		}
		if err == nil && v.Context.Property != nil {
			err = stepValidate.Struct(v.Context.Property)
		}
		if err == nil && v.Context.Placement != nil {
			err = stepValidate.Struct(v.Context.Placement)
		}
	case DeleteFile:
		err = stepValidate.Struct(v)
	case DeleteDirectory:
		err = stepValidate.Struct(v)
	default:
		return fmt.Errorf("%w: unsupported variant %T", ErrInvalidStep, s)
	}

	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidStep, s.Type(), s.Path(), err)
	}
	return nil
}
