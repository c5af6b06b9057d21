// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"fmt"
	"regexp"
)

// strategyNamePattern matches safe strategy names: the model-chosen name
// becomes a filesystem path component (`<strategies_dir>/<name>.yaml`), so
// path separators and dot-dot segments must never reach the filesystem layer.
var strategyNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// ValidateStrategyName validates a strategy name before it is used to build
// a filesystem path, preventing path traversal (e.g. "../../etc/passwd") and
// other unsafe path components.
//
// Valid names:
//   - 1-64 characters
//   - Letters, digits, underscores, hyphens
//   - Must start with a letter or digit
func ValidateStrategyName(name string) error {
	if name == "" {
		return fmt.Errorf("strategy name cannot be empty")
	}
	if !strategyNamePattern.MatchString(name) {
		return fmt.Errorf("invalid strategy name %q (must be 1-64 alphanumeric chars, underscores, or hyphens, starting with a letter or digit)", name)
	}
	return nil
}
