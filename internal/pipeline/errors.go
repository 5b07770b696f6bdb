/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package pipeline

import (
	"fmt"
	"strings"
)

// CheckFailure names a check that rejected the table and why.
type CheckFailure struct {
	Check  string `json:"check"`
	Reason string `json:"reason"`
}

// ValidationError is returned when one or more checks reject the input table.
// No treatment has run when it is returned.
type ValidationError struct {
	Failures []CheckFailure
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %s", f.Check, f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// TreatmentError is returned when a treatment, normalizer or encoder fails.
// Column is empty when the failure is not tied to a single column.
type TreatmentError struct {
	Stage  string
	Column string
	Err    error
}

func (e *TreatmentError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("treatment %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("treatment %s failed on column %q: %v", e.Stage, e.Column, e.Err)
}

func (e *TreatmentError) Unwrap() error {
	return e.Err
}
