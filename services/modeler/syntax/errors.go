// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import "errors"

var (
	// ErrFileTooLarge is returned when a buffer exceeds the size limit.
	ErrFileTooLarge = errors.New("buffer exceeds maximum size limit")

	// ErrInvalidContent is returned when a buffer is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid buffer content")

	// ErrClassNotFound is available to callers that need an error value for
	// a buffer without a class-like declaration. Parse itself never returns it.
	ErrClassNotFound = errors.New("class declaration not found")
)
