// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workers

import (
	"strings"

	"github.com/AleutianAI/researchorchestrator/services/llm"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

// classifyFailureOutcome turns an AgentResult.Error string into the session
// outcome a worker should terminate with: a CANCELLED-class error maps to
// OutcomeCancelled, a request timeout maps to OutcomeFailedTimeout, anything
// else maps to the worker's own default failure outcome.
func classifyFailureOutcome(errText string, defaultOutcome datatypes.Outcome) datatypes.Outcome {
	switch {
	case errText == llm.ErrCancelled.Error():
		return datatypes.OutcomeCancelled
	case strings.Contains(errText, "timed out"):
		return datatypes.OutcomeFailedTimeout
	default:
		return defaultOutcome
	}
}

// isCancellation reports whether errText represents cancellation rather than
// an ordinary failure, so the worker can resolve the child operation as
// CANCELLED instead of FAILED.
func isCancellation(errText string) bool {
	return errText == llm.ErrCancelled.Error()
}
